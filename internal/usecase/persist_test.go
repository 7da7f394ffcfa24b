package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockify-blocks/internal/domain"
)

type fakeService struct {
	id    string
	calls int
}

func (f *fakeService) SaveTimer(ctx context.Context, t *domain.Tracker) string {
	f.calls++
	if t.WorkspaceID == "" {
		t.WorkspaceID = "ws"
		t.ProjectID = "p"
	}
	return f.id
}

type memDocs struct {
	mu      sync.Mutex
	path    string
	content string
	writes  int
	readErr error
}

func (m *memDocs) Active() (string, bool) { return m.path, m.path != "" }

func (m *memDocs) Read(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content, m.readErr
}

func (m *memDocs) Write(ctx context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
	m.writes++
	return nil
}

type memJournal struct{ entries []domain.TimeEntry }

func (j *memJournal) Record(ctx context.Context, e domain.TimeEntry) error {
	j.entries = append(j.entries, e)
	return nil
}

const doc = "before 1\nbefore 2\n```clockify-timer\n\n```\nafter 1\nafter 2\n"

func newReconciler(svc *fakeService, docs *memDocs) *Reconciler {
	return &Reconciler{
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Service:   svc,
		Documents: docs,
		Now:       func() time.Time { return time.Unix(2000, 0) },
	}
}

func TestPersist_RewritesOnlyBlock(t *testing.T) {
	svc := &fakeService{id: "entry-1"}
	docs := &memDocs{path: "/n.md", content: doc}
	journal := &memJournal{}
	r := newReconciler(svc, docs)
	r.Journal = journal

	block := domain.FindBlocks(doc)[0]
	tr := domain.Tracker{Timer: domain.Active{Start: 1000}}

	loc, err := r.Persist(t.Context(), &tr, block)
	require.NoError(t, err)

	assert.Equal(t, "entry-1", tr.ID)
	assert.Equal(t, "ws", tr.WorkspaceID)
	lines := strings.Split(docs.content, "\n")
	assert.Equal(t, []string{"before 1", "before 2", "```clockify-timer"}, lines[:3])
	assert.Equal(t, domain.Serialize(tr), lines[3])
	assert.Equal(t, []string{"```", "after 1", "after 2", ""}, lines[4:])

	require.Len(t, journal.entries, 1)
	assert.Equal(t, "POST", journal.entries[0].Method)
	assert.Equal(t, "/n.md", journal.entries[0].Document)

	// Second persist of an unchanged tracker leaves the document as is.
	first := docs.content
	loc, err = r.Persist(t.Context(), &tr, loc)
	require.NoError(t, err)
	assert.Equal(t, first, docs.content)
	assert.Equal(t, "PUT", journal.entries[1].Method)
	assert.Equal(t, 4, loc.LineEnd)
}

func TestPersist_KeepsExistingID(t *testing.T) {
	svc := &fakeService{id: "other"}
	docs := &memDocs{path: "/n.md", content: doc}
	r := newReconciler(svc, docs)
	tr := domain.Tracker{ID: "mine", WorkspaceID: "w", ProjectID: "p", Timer: domain.Finished{Start: 1, End: 2}}

	_, err := r.Persist(t.Context(), &tr, domain.FindBlocks(doc)[0])
	require.NoError(t, err)
	assert.Equal(t, "mine", tr.ID)
}

func TestPersist_RemoteFailureStillWrites(t *testing.T) {
	svc := &fakeService{}
	docs := &memDocs{path: "/n.md", content: doc}
	journal := &memJournal{}
	r := newReconciler(svc, docs)
	r.Journal = journal
	tr := domain.Tracker{Timer: domain.Active{Start: 1000}}

	_, err := r.Persist(t.Context(), &tr, domain.FindBlocks(doc)[0])
	require.NoError(t, err)
	assert.Equal(t, "", tr.ID)
	assert.Empty(t, journal.entries)
	assert.Contains(t, docs.content, `"start":1000`)
}

func TestPersist_NoActiveDocument(t *testing.T) {
	svc := &fakeService{id: "x"}
	docs := &memDocs{content: doc}
	r := newReconciler(svc, docs)
	tr := domain.NewTracker()
	block := domain.FindBlocks(doc)[0]

	loc, err := r.Persist(t.Context(), &tr, block)
	require.NoError(t, err)
	assert.Equal(t, block, loc)
	assert.Equal(t, 0, svc.calls)
	assert.Equal(t, 0, docs.writes)
}

func TestPersist_StaleBlock(t *testing.T) {
	svc := &fakeService{id: "x"}
	docs := &memDocs{path: "/n.md", content: "inserted\n" + doc}
	r := newReconciler(svc, docs)
	tr := domain.Tracker{Timer: domain.Active{Start: 1000}}
	journal := &memJournal{}
	r.Journal = journal

	_, err := r.Persist(t.Context(), &tr, domain.FindBlocks(doc)[0])
	assert.ErrorIs(t, err, domain.ErrStaleBlock)
	assert.Equal(t, 0, svc.calls, "no remote entry is created for a block that cannot be written")
	assert.Equal(t, "", tr.ID)
	assert.Empty(t, journal.entries)
	assert.Equal(t, 0, docs.writes)
	assert.Equal(t, "inserted\n"+doc, docs.content)

	// After a re-render the same tracker saves once.
	_, err = r.Persist(t.Context(), &tr, domain.FindBlocks(docs.content)[0])
	require.NoError(t, err)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "x", tr.ID)
}

// staleAfterSave edits the document while the remote save is in flight.
type staleAfterSave struct {
	fakeService
	docs *memDocs
}

func (s *staleAfterSave) SaveTimer(ctx context.Context, t *domain.Tracker) string {
	s.docs.mu.Lock()
	s.docs.content = "edited meanwhile\n" + s.docs.content
	s.docs.mu.Unlock()
	return s.fakeService.SaveTimer(ctx, t)
}

func TestPersist_StaleAfterSave(t *testing.T) {
	docs := &memDocs{path: "/n.md", content: doc}
	svc := &staleAfterSave{fakeService: fakeService{id: "x"}, docs: docs}
	r := &Reconciler{Log: slog.New(slog.NewTextHandler(io.Discard, nil)), Service: svc, Documents: docs}
	tr := domain.Tracker{Timer: domain.Active{Start: 1000}}

	_, err := r.Persist(t.Context(), &tr, domain.FindBlocks(doc)[0])
	assert.ErrorIs(t, err, domain.ErrStaleBlock)
	assert.Equal(t, 0, docs.writes)
}

func TestPersist_ReadError(t *testing.T) {
	docs := &memDocs{path: "/n.md", readErr: errors.New("disk gone")}
	svc := &fakeService{id: "x"}
	r := newReconciler(svc, docs)
	tr := domain.NewTracker()

	_, err := r.Persist(t.Context(), &tr, domain.Block{LineStart: 0, LineEnd: 1})
	assert.EqualError(t, err, "disk gone")
	assert.Equal(t, 0, svc.calls)
}

func TestPersist_MissingDependencies(t *testing.T) {
	r := &Reconciler{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	tr := domain.NewTracker()
	_, err := r.Persist(t.Context(), &tr, domain.Block{})
	assert.Error(t, err)
}

func TestWriteBlock_SkipsRemote(t *testing.T) {
	svc := &fakeService{id: "x"}
	docs := &memDocs{path: "/n.md", content: doc}
	r := newReconciler(svc, docs)
	tr := domain.NewTracker()
	tr.SetDescription("later")

	loc, err := r.WriteBlock(t.Context(), tr, domain.FindBlocks(doc)[0])
	require.NoError(t, err)
	assert.Equal(t, 0, svc.calls)
	assert.Equal(t, 1, docs.writes)
	assert.Contains(t, docs.content, `"description":"later"`)
	assert.Equal(t, domain.FindBlocks(docs.content)[0].LineEnd, loc.LineEnd)
}
