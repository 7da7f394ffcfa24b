package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"clockify-blocks/internal/domain"
)

// Vault implements ports.Documents over Markdown files on disk. It tracks a
// single active document, the one trackers are currently rendered from.
type Vault struct {
	mu     sync.RWMutex
	active string
	log    *slog.Logger
}

func New(log *slog.Logger) *Vault {
	return &Vault{log: log}
}

// Open makes path the active document.
func (v *Vault) Open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.active = abs
	v.mu.Unlock()
	v.log.Debug("active document", slog.String("path", abs))
	return nil
}

// Close clears the active document.
func (v *Vault) Close() {
	v.mu.Lock()
	v.active = ""
	v.mu.Unlock()
}

func (v *Vault) Active() (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.active, v.active != ""
}

func (v *Vault) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(b), nil
}

// Write replaces the document through a temp file and rename so readers never
// see a half-written file.
func (v *Vault) Write(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Blocks reads the active document and returns its tracker blocks.
func (v *Vault) Blocks(ctx context.Context) ([]domain.Block, error) {
	path, ok := v.Active()
	if !ok {
		return nil, errors.New("no active document")
	}
	content, err := v.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return domain.FindBlocks(content), nil
}

// Insert adds an empty tracker block before line in the active document,
// creating the file if needed.
func (v *Vault) Insert(ctx context.Context, line int) error {
	path, ok := v.Active()
	if !ok {
		return errors.New("no active document")
	}
	content, err := v.Read(ctx, path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := v.Write(ctx, path, domain.InsertBlock(content, line)); err != nil {
		return err
	}
	v.log.Info("inserted tracker block", slog.String("path", path), slog.Int("line", line))
	return nil
}
