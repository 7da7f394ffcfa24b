package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// State is the lifecycle stage of a tracker.
type State int

const (
	Uninitialised State = iota
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case Uninitialised:
		return "uninitialised"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timer is the time-bounded part of a tracker: Active or Finished, or nil
// for a tracker that was never started. A tracker cannot carry an end time
// while idle or running.
type Timer interface {
	State() State
	bounds() (start, end int64)
}

// Active is a running timer. Start is in Unix seconds.
type Active struct {
	Start int64
}

// Finished is a stopped timer. Start and End are in Unix seconds.
type Finished struct {
	Start int64
	End   int64
}

func (Active) State() State   { return Running }
func (Finished) State() State { return Completed }

func (t Active) bounds() (int64, int64)   { return t.Start, 0 }
func (t Finished) bounds() (int64, int64) { return t.Start, t.End }

// Tracker is the state of one time-tracking widget embedded in a document block.
type Tracker struct {
	WorkspaceID string
	ProjectID   string
	ID          string
	Description string
	Timer       Timer
}

// NewTracker returns the default, never started tracker. It is the zero
// Tracker, so a default tracker survives a Serialize/Deserialize round trip
// unchanged.
func NewTracker() Tracker {
	return Tracker{}
}

// State reports the lifecycle stage. A nil Timer is Uninitialised.
func (t Tracker) State() State {
	if t.Timer == nil {
		return Uninitialised
	}
	return t.Timer.State()
}

// Start returns the start time in Unix seconds, 0 when never started.
func (t Tracker) Start() int64 {
	if t.Timer == nil {
		return 0
	}
	s, _ := t.Timer.bounds()
	return s
}

// End returns the end time in Unix seconds, 0 while open-ended.
func (t Tracker) End() int64 {
	if t.Timer == nil {
		return 0
	}
	_, e := t.Timer.bounds()
	return e
}

// Action is a user-triggered state change.
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
	// ActionSave re-saves a completed tracker, e.g. after a description edit.
	ActionSave
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionSave:
		return "save"
	default:
		return "none"
	}
}

// StartAt moves an Uninitialised tracker to Running. It reports whether the
// transition happened; in any other state the tracker is left untouched.
func (t *Tracker) StartAt(now time.Time) bool {
	if t.State() != Uninitialised {
		return false
	}
	t.Timer = Active{Start: now.Unix()}
	return true
}

// StopAt moves a Running tracker to Completed. It reports whether the
// transition happened.
func (t *Tracker) StopAt(now time.Time) bool {
	a, ok := t.Timer.(Active)
	if !ok {
		return false
	}
	end := now.Unix()
	if end < a.Start {
		end = a.Start
	}
	t.Timer = Finished{Start: a.Start, End: end}
	return true
}

// Apply performs the timer part of an action. ActionSave and ActionNone never
// change the timer.
func (t *Tracker) Apply(action Action, now time.Time) bool {
	switch action {
	case ActionStart:
		return t.StartAt(now)
	case ActionStop:
		return t.StopAt(now)
	default:
		return false
	}
}

// SetDescription updates the description unless the tracker is running.
func (t *Tracker) SetDescription(s string) bool {
	if t.State() == Running {
		return false
	}
	t.Description = s
	return true
}

// wireTracker is the JSON shape stored in the document block.
type wireTracker struct {
	State       *State `json:"state,omitempty"`
	WorkspaceID string `json:"workspaceId"`
	ProjectID   string `json:"projectId"`
	ID          string `json:"id"`
	Description string `json:"description"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
}

var errInvalidTimer = errors.New("tracker timestamps do not match state")

// MarshalJSON encodes the tracker in its flat block form.
func (t Tracker) MarshalJSON() ([]byte, error) {
	st := t.State()
	return json.Marshal(wireTracker{
		State:       &st,
		WorkspaceID: t.WorkspaceID,
		ProjectID:   t.ProjectID,
		ID:          t.ID,
		Description: t.Description,
		Start:       t.Start(),
		End:         t.End(),
	})
}

// UnmarshalJSON decodes the flat block form. Blocks written before the state
// field existed get their state from the timestamps.
func (t *Tracker) UnmarshalJSON(b []byte) error {
	var w wireTracker
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	st := inferState(w.Start, w.End)
	if w.State != nil {
		st = *w.State
	}
	timer, err := timerFor(st, w.Start, w.End)
	if err != nil {
		return err
	}
	*t = Tracker{
		WorkspaceID: w.WorkspaceID,
		ProjectID:   w.ProjectID,
		ID:          w.ID,
		Description: w.Description,
		Timer:       timer,
	}
	return nil
}

func inferState(start, end int64) State {
	switch {
	case end > 0:
		return Completed
	case start > 0:
		return Running
	default:
		return Uninitialised
	}
}

func timerFor(st State, start, end int64) (Timer, error) {
	switch st {
	case Uninitialised:
		if start != 0 || end != 0 {
			return nil, fmt.Errorf("%w: %s with start=%d end=%d", errInvalidTimer, st, start, end)
		}
		return nil, nil
	case Running:
		if start <= 0 || end != 0 {
			return nil, fmt.Errorf("%w: %s with start=%d end=%d", errInvalidTimer, st, start, end)
		}
		return Active{Start: start}, nil
	case Completed:
		if start <= 0 || end <= 0 || end < start {
			return nil, fmt.Errorf("%w: %s with start=%d end=%d", errInvalidTimer, st, start, end)
		}
		return Finished{Start: start, End: end}, nil
	default:
		return nil, fmt.Errorf("unknown tracker state %d", int(st))
	}
}

// Deserialize parses a block body. Empty or unusable input yields the default
// tracker; the failure is logged, never returned.
func Deserialize(text string, log *slog.Logger) Tracker {
	text = strings.TrimSpace(text)
	if text == "" {
		return NewTracker()
	}
	var t Tracker
	if err := json.Unmarshal([]byte(text), &t); err != nil {
		if log != nil {
			log.Warn("failed to parse tracker, using default",
				slog.String("body", text),
				slog.String("error", err.Error()),
			)
		}
		return NewTracker()
	}
	return t
}

// Serialize returns the canonical single-line block body for t.
func Serialize(t Tracker) string {
	b, err := json.Marshal(t)
	if err != nil {
		// wireTracker holds only strings and integers.
		panic(err)
	}
	return string(b)
}
