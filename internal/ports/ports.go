package ports

import (
	"context"

	"clockify-blocks/internal/domain"
)

// TimeEntryService saves trackers to the remote time-tracking backend.
// An empty id means nothing was assigned; it is not an error.
type TimeEntryService interface {
	SaveTimer(ctx context.Context, t *domain.Tracker) string
}

// Documents gives access to the document a tracker block lives in.
type Documents interface {
	// Active returns the path of the document being edited, false if none.
	Active() (string, bool)
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
}

// Journal receives every successfully saved entry. It is optional.
type Journal interface {
	Record(ctx context.Context, e domain.TimeEntry) error
}
