package domain

import "time"

// TimeEntry is a saved Clockify time entry as recorded in the journal.
type TimeEntry struct {
	ID          string
	WorkspaceID string
	ProjectID   string
	Description string
	Start       time.Time
	End         *time.Time // nil while the timer is running
	Document    string
	Method      string // POST for creates, PUT for updates
	SavedAt     time.Time
}

// EntryFromTracker builds the journal record for a tracker that was just saved.
func EntryFromTracker(t Tracker, document, method string, savedAt time.Time) TimeEntry {
	e := TimeEntry{
		ID:          t.ID,
		WorkspaceID: t.WorkspaceID,
		ProjectID:   t.ProjectID,
		Description: t.Description,
		Start:       time.Unix(t.Start(), 0).UTC(),
		Document:    document,
		Method:      method,
		SavedAt:     savedAt.UTC(),
	}
	if end := t.End(); end != 0 {
		stop := time.Unix(end, 0).UTC()
		e.End = &stop
	}
	return e
}
