package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clockify-blocks/internal/adapter/clockify"
	"clockify-blocks/internal/adapter/journal"
	"clockify-blocks/internal/adapter/vault"
	"clockify-blocks/internal/config"
	"clockify-blocks/internal/domain"
	"clockify-blocks/internal/migrate"
	"clockify-blocks/internal/ports"
	"clockify-blocks/internal/usecase"
	"clockify-blocks/internal/widget"
)

// ErrNoBlock is returned when a block index does not exist in the document.
var ErrNoBlock = errors.New("no such tracker block")

// ErrOutsideRoot is returned for document paths that escape the vault root.
var ErrOutsideRoot = errors.New("path is outside the vault root")

// App wires adapters, the reconciler and widgets.
type App struct {
	log     *slog.Logger
	cfg     config.Config
	service ports.TimeEntryService
	journal *journal.Client
	root    string

	// vault and rec serve the single document opened with Open (terminal UI).
	vault *vault.Vault
	rec   *usecase.Reconciler

	// locks serializes writes per document path; reads take no lock.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds the application. When a journal driver is configured its
// migrations are applied first.
func New(ctx context.Context, log *slog.Logger, cfg config.Config) (*App, error) {
	client := clockify.NewClient(cfg.Clockify.BaseEndpoint, cfg.Clockify.APIToken, cfg.Clockify.Workspace, cfg.Clockify.Project, log)
	return NewWithService(ctx, log, cfg, client)
}

// NewWithService is New with a caller-supplied time-entry service.
func NewWithService(ctx context.Context, log *slog.Logger, cfg config.Config, svc ports.TimeEntryService) (*App, error) {
	a := &App{log: log, cfg: cfg, service: svc, locks: make(map[string]*sync.Mutex)}
	if cfg.Vault.Root != "" {
		if err := a.SetRoot(cfg.Vault.Root); err != nil {
			return nil, err
		}
	}
	if cfg.Journal.Driver != "" {
		if err := migrate.Run(ctx, cfg.Journal.Driver, cfg.Journal.DSN, log); err != nil {
			return nil, fmt.Errorf("journal migrations: %w", err)
		}
		j, err := journal.NewClient(ctx, cfg.Journal.Driver, cfg.Journal.DSN, log)
		if err != nil {
			return nil, err
		}
		a.journal = j
	}
	a.vault = vault.New(log)
	a.rec = a.reconciler(a.vault)
	return a, nil
}

func (a *App) reconciler(docs ports.Documents) *usecase.Reconciler {
	rec := &usecase.Reconciler{Log: a.log, Service: a.service, Documents: docs}
	if a.journal != nil {
		rec.Journal = a.journal
	}
	return rec
}

// Close releases the journal connection, if any.
func (a *App) Close() error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Close()
}

// SetRoot confines every per-path operation to documents below dir.
// Relative paths are taken relative to dir.
func (a *App) SetRoot(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("vault root: %w", err)
	}
	a.root = abs
	return nil
}

// Root returns the vault root, "" when paths are not confined.
func (a *App) Root() string { return a.root }

// Open makes path the active document.
func (a *App) Open(path string) error {
	return a.vault.Open(path)
}

// Render rebuilds one widget per tracker block of the active document.
func (a *App) Render(ctx context.Context) ([]*widget.Widget, error) {
	return a.render(ctx, a.vault, a.rec)
}

// Insert adds an empty tracker block to the active document.
func (a *App) Insert(ctx context.Context, line int) error {
	return a.vault.Insert(ctx, line)
}

func (a *App) render(ctx context.Context, v *vault.Vault, rec *usecase.Reconciler) ([]*widget.Widget, error) {
	blocks, err := v.Blocks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*widget.Widget, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, widget.New(b, rec, a.log))
	}
	return out, nil
}

// document is one per-path operation: its own vault with path active and a
// reconciler writing to it.
type document struct {
	path  string
	vault *vault.Vault
	rec   *usecase.Reconciler
}

func (a *App) document(path string) (*document, error) {
	p, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	v := vault.New(a.log)
	if err := v.Open(p); err != nil {
		return nil, err
	}
	return &document{path: p, vault: v, rec: a.reconciler(v)}, nil
}

// resolve makes path absolute and, with a root set, checks it stays below it.
func (a *App) resolve(path string) (string, error) {
	if a.root == "" {
		return filepath.Abs(path)
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(a.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(a.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return p, nil
}

// lock serializes writers of one document. The returned func unlocks.
func (a *App) lock(path string) func() {
	a.mu.Lock()
	l, ok := a.locks[path]
	if !ok {
		l = &sync.Mutex{}
		a.locks[path] = l
	}
	a.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Views renders path and returns the view of every block.
func (a *App) Views(ctx context.Context, path string) ([]widget.View, error) {
	d, err := a.document(path)
	if err != nil {
		return nil, err
	}
	ws, err := a.render(ctx, d.vault, d.rec)
	if err != nil {
		return nil, err
	}
	views := make([]widget.View, len(ws))
	for i, w := range ws {
		views[i] = w.View()
	}
	return views, nil
}

// Click renders path and clicks block index.
func (a *App) Click(ctx context.Context, path string, index int) (widget.View, error) {
	d, err := a.document(path)
	if err != nil {
		return widget.View{}, err
	}
	defer a.lock(d.path)()
	w, err := a.widgetAt(ctx, d, index)
	if err != nil {
		return widget.View{}, err
	}
	return w.Click(ctx)
}

// Describe renders path and sets the description of block index.
func (a *App) Describe(ctx context.Context, path string, index int, text string) (widget.View, error) {
	d, err := a.document(path)
	if err != nil {
		return widget.View{}, err
	}
	defer a.lock(d.path)()
	w, err := a.widgetAt(ctx, d, index)
	if err != nil {
		return widget.View{}, err
	}
	return w.Describe(ctx, text)
}

// InsertAt adds an empty block to path before line.
func (a *App) InsertAt(ctx context.Context, path string, line int) error {
	d, err := a.document(path)
	if err != nil {
		return err
	}
	defer a.lock(d.path)()
	return d.vault.Insert(ctx, line)
}

func (a *App) widgetAt(ctx context.Context, d *document, index int) (*widget.Widget, error) {
	ws, err := a.render(ctx, d.vault, d.rec)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(ws) {
		return nil, fmt.Errorf("%w: %d (document has %d)", ErrNoBlock, index, len(ws))
	}
	return ws[index], nil
}

// RefreshInterval is how often attached widgets redraw.
func (a *App) RefreshInterval() time.Duration { return a.cfg.RefreshInterval }

// History returns the journaled saves of one time entry.
func (a *App) History(ctx context.Context, entryID string) ([]domain.TimeEntry, error) {
	if a.journal == nil {
		return nil, errors.New("no journal configured")
	}
	return a.journal.History(ctx, entryID)
}
