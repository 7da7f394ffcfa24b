package widget

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"clockify-blocks/internal/domain"
)

// DefaultInterval is how often an attached widget refreshes its duration.
const DefaultInterval = time.Second

var (
	// ErrBusy is returned by Click while a previous click is still persisting.
	ErrBusy = errors.New("tracker is busy saving")
	// ErrRunning is returned when the description of a running tracker is edited.
	ErrRunning = errors.New("description is locked while the timer runs")
)

// Persister writes a tracker back to its block; usecase.Reconciler satisfies it.
type Persister interface {
	// Persist saves remotely, then rewrites the block.
	Persist(ctx context.Context, t *domain.Tracker, block domain.Block) (domain.Block, error)
	// WriteBlock only rewrites the block.
	WriteBlock(ctx context.Context, t domain.Tracker, block domain.Block) (domain.Block, error)
}

// View is everything a surface needs to draw one tracker.
type View struct {
	Instance           string            `json:"instance"`
	Block              int               `json:"block"`
	State              string            `json:"state"`
	Description        string            `json:"description"`
	DescriptionEnabled bool              `json:"descriptionEnabled"`
	Duration           string            `json:"duration"`
	Affordance         domain.Affordance `json:"affordance"`
	ID                 string            `json:"id,omitempty"`
}

// Widget is the live instance of one rendered tracker block. It is built
// from the block text on every render and never shared between renders.
type Widget struct {
	id        uuid.UUID
	persister Persister
	log       *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	tracker domain.Tracker
	block   domain.Block

	busy atomic.Bool

	attachMu sync.Mutex
	stop     context.CancelFunc
	done     chan struct{}
}

// Option configures a Widget.
type Option func(*Widget)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

// New renders block into a fresh widget.
func New(block domain.Block, persister Persister, log *slog.Logger, opts ...Option) *Widget {
	w := &Widget{
		id:        uuid.New(),
		persister: persister,
		log:       log,
		now:       time.Now,
		block:     block,
	}
	for _, o := range opts {
		o(w)
	}
	w.tracker = domain.Deserialize(block.Body, log.With(slog.Int("block", block.Index)))
	return w
}

// Tracker returns a copy of the current tracker state.
func (w *Widget) Tracker() domain.Tracker {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker
}

// Block returns where the widget's block was last known to be.
func (w *Widget) Block() domain.Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.block
}

// Busy reports whether a click is being persisted.
func (w *Widget) Busy() bool { return w.busy.Load() }

func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Widget) viewLocked() View {
	st := w.tracker.State()
	return View{
		Instance:           w.id.String(),
		Block:              w.block.Index,
		State:              st.String(),
		Description:        w.tracker.Description,
		DescriptionEnabled: st != domain.Running,
		Duration:           domain.FormatDuration(domain.Elapsed(w.tracker, w.now())),
		Affordance:         domain.AffordanceFor(st),
		ID:                 w.tracker.ID,
	}
}

// SetDescription edits the description in memory. It is refused while the
// timer runs; the change reaches the document with the next click.
func (w *Widget) SetDescription(s string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.SetDescription(s)
}

// Describe sets the description and stores it. Completed trackers are
// re-saved remotely like an edit click; trackers that never started only
// have their block rewritten. If storing fails the old description is kept.
func (w *Widget) Describe(ctx context.Context, s string) (View, error) {
	w.mu.Lock()
	st, prev := w.tracker.State(), w.tracker.Description
	if !w.tracker.SetDescription(s) {
		w.mu.Unlock()
		return w.View(), ErrRunning
	}
	t, block := w.tracker, w.block
	w.mu.Unlock()

	if st == domain.Completed {
		v, err := w.Click(ctx)
		if err != nil && !errors.Is(err, ErrBusy) {
			w.mu.Lock()
			w.tracker.Description = prev
			v = w.viewLocked()
			w.mu.Unlock()
		}
		return v, err
	}
	if !w.busy.CompareAndSwap(false, true) {
		return w.View(), ErrBusy
	}
	defer w.busy.Store(false)
	loc, err := w.persister.WriteBlock(ctx, t, block)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.tracker.Description = prev
		return w.viewLocked(), err
	}
	w.block = loc
	return w.viewLocked(), nil
}

// Click performs the current affordance's action, then persists. Overlapping
// clicks fail with ErrBusy. When persisting fails the timer goes back to its
// state before the click, so clicking again retries the same action; ids
// learned from the service are kept.
func (w *Widget) Click(ctx context.Context) (View, error) {
	if !w.busy.CompareAndSwap(false, true) {
		return w.View(), ErrBusy
	}
	defer w.busy.Store(false)

	w.mu.Lock()
	action := domain.AffordanceFor(w.tracker.State()).Action
	prev := w.tracker.Timer
	w.tracker.Apply(action, w.now())
	t := w.tracker
	block := w.block
	w.mu.Unlock()

	w.log.Info("tracker clicked",
		slog.String("instance", w.id.String()),
		slog.Int("block", block.Index),
		slog.String("action", action.String()),
	)

	// Persist runs on a copy so the lock is not held during network and file I/O.
	loc, err := w.persister.Persist(ctx, &t, block)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracker.WorkspaceID = t.WorkspaceID
	w.tracker.ProjectID = t.ProjectID
	if w.tracker.ID == "" {
		w.tracker.ID = t.ID
	}
	if err != nil {
		w.tracker.Timer = prev
		w.log.Error("persist failed", slog.Int("block", block.Index), slog.String("error", err.Error()))
		return w.viewLocked(), err
	}
	w.block = loc
	return w.viewLocked(), nil
}

// Attach starts the periodic duration refresh: onRefresh receives a fresh
// view every interval until Detach is called or ctx ends. Attaching an
// already attached widget does nothing.
func (w *Widget) Attach(ctx context.Context, interval time.Duration, onRefresh func(View)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w.attachMu.Lock()
	defer w.attachMu.Unlock()
	if w.stop != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.stop = cancel
	w.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				onRefresh(w.View())
			}
		}
	}(w.done)
}

// Detach stops the refresh and waits for it to exit. After Detach returns,
// onRefresh is not called again. It is safe to call more than once.
func (w *Widget) Detach() {
	w.attachMu.Lock()
	stop, done := w.stop, w.done
	w.attachMu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// Attached reports whether the refresh loop is running.
func (w *Widget) Attached() bool {
	w.attachMu.Lock()
	defer w.attachMu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}
