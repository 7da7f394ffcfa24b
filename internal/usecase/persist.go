package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"clockify-blocks/internal/domain"
	"clockify-blocks/internal/ports"
)

// Reconciler saves a tracker remotely and writes its state back into the
// tracker's block in the active document.
type Reconciler struct {
	Log       *slog.Logger
	Service   ports.TimeEntryService
	Documents ports.Documents
	Journal   ports.Journal // optional
	Now       func() time.Time
}

// Persist reconciles t with the remote service and rewrites block in the
// active document. It returns the block's location after the rewrite; with
// no active document nothing happens and block is returned unchanged.
//
// The block location comes from the last render. If the document was edited
// above the block since then, the fences are no longer where block says and
// Persist fails with domain.ErrStaleBlock before anything is saved remotely
// or written. The check is repeated when writing, since the service call can
// take a while. Edits that keep the fences in place but change the lines
// between them are overwritten.
func (r *Reconciler) Persist(ctx context.Context, t *domain.Tracker, block domain.Block) (domain.Block, error) {
	if r.Service == nil || r.Documents == nil {
		return block, errors.New("reconciler not initialized: missing dependencies")
	}
	path, ok := r.Documents.Active()
	if !ok {
		r.Log.Debug("no active document, skipping persist")
		return block, nil
	}
	content, err := r.Documents.Read(ctx, path)
	if err != nil {
		return block, err
	}
	if err := domain.CheckBlock(content, block); err != nil {
		return block, err
	}

	method := http.MethodPut
	if t.ID == "" {
		method = http.MethodPost
	}
	id := r.Service.SaveTimer(ctx, t)
	if t.ID == "" && id != "" {
		r.Log.Info("tracker assigned id", slog.String("id", id))
		t.ID = id
	}
	if id != "" && r.Journal != nil {
		if err := r.Journal.Record(ctx, domain.EntryFromTracker(*t, path, method, r.now())); err != nil {
			r.Log.Error("journal record failed", slog.String("error", err.Error()))
		}
	}

	return r.write(ctx, path, t, block)
}

// WriteBlock rewrites block in the active document without contacting the
// remote service. It is used for edits to trackers that were never started.
func (r *Reconciler) WriteBlock(ctx context.Context, t domain.Tracker, block domain.Block) (domain.Block, error) {
	if r.Documents == nil {
		return block, errors.New("reconciler not initialized: missing dependencies")
	}
	path, ok := r.Documents.Active()
	if !ok {
		return block, nil
	}
	return r.write(ctx, path, &t, block)
}

func (r *Reconciler) write(ctx context.Context, path string, t *domain.Tracker, block domain.Block) (domain.Block, error) {
	content, err := r.Documents.Read(ctx, path)
	if err != nil {
		return block, err
	}
	body := domain.Serialize(*t)
	updated, err := domain.ReplaceBlock(content, block, body)
	if err != nil {
		return block, err
	}
	if err := r.Documents.Write(ctx, path, updated); err != nil {
		return block, err
	}
	r.Log.Debug("block persisted",
		slog.String("path", path),
		slog.Int("block", block.Index),
		slog.String("state", t.State().String()),
	)
	return block.Rewritten(body), nil
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
