package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockify-blocks/internal/config"
	"clockify-blocks/internal/domain"
	"clockify-blocks/internal/widget"
)

type stubService struct {
	mu    sync.Mutex
	saved []domain.Tracker

	// When set, SaveTimer signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (s *stubService) SaveTimer(ctx context.Context, t *domain.Tracker) string {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.WorkspaceID, t.ProjectID = "ws", "p"
	s.saved = append(s.saved, *t)
	if t.ID != "" {
		return t.ID
	}
	return "entry-1"
}

type blocksResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Blocks []struct {
		State       string `json:"state"`
		Description string `json:"description"`
		Duration    string `json:"duration"`
		ID          string `json:"id"`
	} `json:"blocks"`
	Block struct {
		State              string `json:"state"`
		DescriptionEnabled bool   `json:"descriptionEnabled"`
		ID                 string `json:"id"`
	} `json:"block"`
}

func newTestServer(t *testing.T, cfg config.Config) (*httptest.Server, *App, *stubService) {
	t.Helper()
	svc := &stubService{}
	a, err := NewWithService(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, svc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	srv := httptest.NewServer(a.HTTPServer("127.0.0.1:0").Handler)
	t.Cleanup(srv.Close)
	return srv, a, svc
}

func call(t *testing.T, method, u string, body string) (int, blocksResponse) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, u, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out blocksResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHTTP_TrackerLifecycle(t *testing.T) {
	srv, _, svc := newTestServer(t, config.Config{})
	file := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(file, []byte("# Today\n\nsome text\n"), 0o644))
	q := "?file=" + url.QueryEscape(file)

	code, _ := call(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, http.MethodPost, srv.URL+"/blocks"+q+"&line=1", "")
	require.Equal(t, http.StatusCreated, code)

	code, res := call(t, http.MethodGet, srv.URL+"/blocks"+q, "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, "uninitialised", res.Blocks[0].State)
	assert.Equal(t, "0s", res.Blocks[0].Duration)

	code, res = call(t, http.MethodPut, srv.URL+"/blocks/0/description"+q, `{"description":"standup"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, svc.saved, "describing a fresh tracker stays local")

	code, res = call(t, http.MethodPost, srv.URL+"/blocks/0/click"+q, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", res.Block.State)
	assert.False(t, res.Block.DescriptionEnabled)
	assert.Equal(t, "entry-1", res.Block.ID)

	code, res = call(t, http.MethodPut, srv.URL+"/blocks/0/description"+q, `{"description":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, res = call(t, http.MethodPost, srv.URL+"/blocks/0/click"+q, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "completed", res.Block.State)
	assert.True(t, res.Block.DescriptionEnabled)

	require.Len(t, svc.saved, 2)
	assert.Equal(t, "standup", svc.saved[0].Description)
	assert.Equal(t, "entry-1", svc.saved[1].ID)

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(string(content), "\n")
	assert.Equal(t, "# Today", lines[0])
	assert.Equal(t, "```clockify-timer", lines[1])
	assert.Contains(t, lines[2], `"state":2`)
	assert.Contains(t, lines[2], `"id":"entry-1"`)
	assert.Equal(t, "```", lines[3])
	assert.Equal(t, []string{"", "some text", ""}, lines[4:])
}

func TestHTTP_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t, config.Config{})
	file := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, os.WriteFile(file, []byte("nothing here\n"), 0o644))
	q := "?file=" + url.QueryEscape(file)

	code, _ := call(t, http.MethodGet, srv.URL+"/blocks", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, http.MethodPost, srv.URL+"/blocks/0/click"+q, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, http.MethodPost, srv.URL+"/blocks/x/click"+q, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, http.MethodGet, srv.URL+"/blocks?file="+url.QueryEscape(file+".missing"), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, http.MethodPut, srv.URL+"/blocks/0/description"+q, "{")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestApp_JournalWiring(t *testing.T) {
	cfg := config.Config{}
	cfg.Journal.Driver = "sqlite"
	cfg.Journal.DSN = "file:" + filepath.Join(t.TempDir(), "journal.db")
	_, a, _ := newTestServer(t, cfg)

	file := filepath.Join(t.TempDir(), "n.md")
	require.NoError(t, a.InsertAt(t.Context(), file, 0))
	_, err := a.Click(t.Context(), file, 0)
	require.NoError(t, err)
	_, err = a.Click(t.Context(), file, 0)
	require.NoError(t, err)

	hist, err := a.History(t.Context(), "entry-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, http.MethodPost, hist[0].Method)
	assert.Equal(t, http.MethodPut, hist[1].Method)
	assert.NotNil(t, hist[1].End)
}

func TestApp_HistoryWithoutJournal(t *testing.T) {
	_, a, _ := newTestServer(t, config.Config{})
	_, err := a.History(t.Context(), "x")
	assert.Error(t, err)
}

func TestHTTP_VaultRoot(t *testing.T) {
	root := t.TempDir()
	cfg := config.Config{}
	cfg.Vault.Root = root
	srv, a, _ := newTestServer(t, cfg)
	assert.Equal(t, root, a.Root())

	code, _ := call(t, http.MethodPost, srv.URL+"/blocks?file=note.md", "")
	require.Equal(t, http.StatusCreated, code)
	_, err := os.Stat(filepath.Join(root, "note.md"))
	require.NoError(t, err)

	code, res := call(t, http.MethodGet, srv.URL+"/blocks?file="+url.QueryEscape(filepath.Join(root, "note.md")), "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Blocks, 1)

	outside := filepath.Join(t.TempDir(), "evil.md")
	for _, f := range []string{outside, "../evil.md", "sub/../../evil.md"} {
		code, _ = call(t, http.MethodPost, srv.URL+"/blocks?file="+url.QueryEscape(f), "")
		assert.Equal(t, http.StatusForbidden, code, f)
		code, _ = call(t, http.MethodPost, srv.URL+"/blocks/0/click?file="+url.QueryEscape(f), "")
		assert.Equal(t, http.StatusForbidden, code, f)
	}
	_, err = os.Stat(outside)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "evil.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApp_ReadsDoNotWaitForSaves(t *testing.T) {
	srv, a, svc := newTestServer(t, config.Config{})
	svc.entered, svc.release = make(chan struct{}), make(chan struct{})
	file := filepath.Join(t.TempDir(), "n.md")
	require.NoError(t, a.InsertAt(t.Context(), file, 0))

	clicked := make(chan error, 1)
	go func() {
		_, err := a.Click(t.Context(), file, 0)
		clicked <- err
	}()
	<-svc.entered

	type result struct {
		views []widget.View
		err   error
	}
	read := make(chan result, 1)
	go func() {
		views, err := a.Views(t.Context(), file)
		read <- result{views, err}
	}()
	select {
	case r := <-read:
		require.NoError(t, r.err)
		require.Len(t, r.views, 1)
		assert.Equal(t, "uninitialised", r.views[0].State)
	case <-time.After(5 * time.Second):
		t.Fatal("reading blocks waited for an in-flight save")
	}
	code, res := call(t, http.MethodGet, srv.URL+"/blocks?file="+url.QueryEscape(file), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "uninitialised", res.Blocks[0].State)

	close(svc.release)
	require.NoError(t, <-clicked)
	views, err := a.Views(t.Context(), file)
	require.NoError(t, err)
	assert.Equal(t, "running", views[0].State)
}

func TestResolve(t *testing.T) {
	a := &App{}
	p, err := a.resolve("x.md")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))

	root := t.TempDir()
	require.NoError(t, a.SetRoot(root))
	p, err = a.resolve("a/../b.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.md"), p)
	p, err = a.resolve(filepath.Join(root, "c.md"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "c.md"), p)

	_, err = a.resolve("..")
	assert.ErrorIs(t, err, ErrOutsideRoot)
	_, err = a.resolve(root + "-other/x.md")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}
