package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBaseEndpoint is used when base_endpoint is blank.
const DefaultBaseEndpoint = "https://api.clockify.me/api/v1/"

const (
	fileName  = "config"
	fileType  = "yaml"
	envPrefix = "CLOCKIFY"
)

// Setting keys, as used in config.yaml and (upper-cased, dots as
// underscores, CLOCKIFY_ prefix) in the environment.
const (
	KeyAPIToken        = "api_token"
	KeyBaseEndpoint    = "base_endpoint"
	KeyWorkspace       = "workspace"
	KeyProject         = "project"
	KeyRefreshInterval = "refresh_interval"
	KeyJournalDriver   = "journal.driver"
	KeyJournalDSN      = "journal.dsn"
	KeyHTTPAddr        = "http.addr"
	KeyVaultRoot       = "vault.root"
)

var keys = []string{
	KeyAPIToken, KeyBaseEndpoint, KeyWorkspace, KeyProject,
	KeyRefreshInterval, KeyJournalDriver, KeyJournalDSN, KeyHTTPAddr,
	KeyVaultRoot,
}

// Config holds the settings of the Clockify integration.
type Config struct {
	Clockify struct {
		APIToken     string
		BaseEndpoint string // always ends with "/"
		Workspace    string // workspace name, resolved to an id on first save
		Project      string // project name, resolved to an id on first save
	}
	Journal struct {
		Driver string // "mysql", "sqlite" or empty for no journal
		DSN    string
	}
	HTTP struct {
		Addr string
	}
	Vault struct {
		Root string // documents served over HTTP must live below it
	}
	RefreshInterval time.Duration
}

// DefaultDir returns $XDG_CONFIG_HOME/clockify-blocks or ~/.config/clockify-blocks.
func DefaultDir() (string, error) {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, "clockify-blocks"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "clockify-blocks"), nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyBaseEndpoint, DefaultBaseEndpoint)
	v.SetDefault(KeyRefreshInterval, time.Second)
	v.SetDefault(KeyHTTPAddr, "127.0.0.1:8787")
	v.SetConfigName(fileName)
	v.SetConfigType(fileType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads config.yaml from dir and overlays CLOCKIFY_* environment
// variables. A missing config file is not an error.
func Load(dir string) (Config, error) {
	var cfg Config
	v := newViper(dir)
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.Clockify.APIToken = v.GetString(KeyAPIToken)
	cfg.Clockify.BaseEndpoint = NormalizeEndpoint(v.GetString(KeyBaseEndpoint))
	cfg.Clockify.Workspace = v.GetString(KeyWorkspace)
	cfg.Clockify.Project = v.GetString(KeyProject)
	cfg.Journal.Driver = v.GetString(KeyJournalDriver)
	cfg.Journal.DSN = v.GetString(KeyJournalDSN)
	cfg.HTTP.Addr = v.GetString(KeyHTTPAddr)
	cfg.Vault.Root = v.GetString(KeyVaultRoot)
	cfg.RefreshInterval = v.GetDuration(KeyRefreshInterval)
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second
	}

	switch cfg.Journal.Driver {
	case "", "mysql", "sqlite":
	default:
		return cfg, fmt.Errorf("%s must be mysql or sqlite, got %q", KeyJournalDriver, cfg.Journal.Driver)
	}
	if cfg.Journal.Driver != "" && cfg.Journal.DSN == "" {
		return cfg, fmt.Errorf("%s is required when %s is set", KeyJournalDSN, KeyJournalDriver)
	}
	return cfg, nil
}

// Validate reports settings that must be present to talk to Clockify.
func (c Config) Validate() error {
	var errs []error
	if c.Clockify.APIToken == "" {
		errs = append(errs, errors.New(KeyAPIToken+" is required"))
	}
	if c.Clockify.Workspace == "" {
		errs = append(errs, errors.New(KeyWorkspace+" is required"))
	}
	if c.Clockify.Project == "" {
		errs = append(errs, errors.New(KeyProject+" is required"))
	}
	return errors.Join(errs...)
}

// NormalizeEndpoint defaults a blank endpoint and appends the trailing slash.
func NormalizeEndpoint(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultBaseEndpoint
	}
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s
}

// Set stores one setting in dir/config.yaml, creating the file if needed.
func Set(dir, key, value string) error {
	if !slices.Contains(keys, key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	if key == KeyBaseEndpoint {
		value = NormalizeEndpoint(value)
	}
	if key == KeyRefreshInterval {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	// Read the file alone so environment overrides are not written back.
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, fileName+"."+fileType))
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	v.Set(key, value)
	if err := v.WriteConfigAs(filepath.Join(dir, fileName+"."+fileType)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Keys lists the settings accepted by Set.
func Keys() []string {
	return slices.Clone(keys)
}
