package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"clockify-blocks/internal/domain"
)

// DefaultBaseEndpoint is the public Clockify API root.
const DefaultBaseEndpoint = "https://api.clockify.me/api/v1/"

// timestampLayout is the UTC form Clockify accepts for start and end.
const timestampLayout = "2006-01-02T15:04:05Z"

// Client implements ports.TimeEntryService against the Clockify REST API v1.
type Client struct {
	baseURL   string
	apiToken  string
	workspace string
	project   string
	http      *http.Client
	log       *slog.Logger
}

// NewClient builds a client. baseURL must end with a slash; workspace and
// project are the human-readable names resolved on first save.
func NewClient(baseURL, apiToken, workspace, project string, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseEndpoint
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL:   baseURL,
		apiToken:  apiToken,
		workspace: workspace,
		project:   project,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// ResolveID returns the id of the first object in {base}{collectionPath}
// whose name equals name. Any failure is logged and yields "".
func (c *Client) ResolveID(ctx context.Context, collectionPath, name string) string {
	id, err := c.lookupID(ctx, collectionPath, name)
	if err != nil {
		c.log.Error("clockify: resolve id failed",
			slog.String("path", collectionPath),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if id == "" {
		c.log.Warn("clockify: no object with name", slog.String("path", collectionPath), slog.String("name", name))
	}
	return id
}

func (c *Client) lookupID(ctx context.Context, collectionPath, name string) (string, error) {
	var objects []domain.NamedObject
	if err := c.do(ctx, http.MethodGet, collectionPath, nil, &objects); err != nil {
		return "", err
	}
	for _, o := range objects {
		c.log.Debug("clockify: candidate", slog.String("name", o.Name))
		if o.Name == name {
			return o.ID, nil
		}
	}
	return "", nil
}

// SaveTimer creates (POST) or updates (PUT) the time entry for t and returns
// the entry id from the response. Workspace and project ids are resolved and
// cached on t when missing; if either cannot be resolved nothing is sent.
// Failures are logged and yield "".
func (c *Client) SaveTimer(ctx context.Context, t *domain.Tracker) string {
	if t.WorkspaceID == "" || t.ProjectID == "" {
		ws := c.ResolveID(ctx, "workspaces", c.workspace)
		if ws == "" {
			c.log.Error("clockify: cannot save without a workspace", slog.String("workspace", c.workspace))
			return ""
		}
		project := c.ResolveID(ctx, fmt.Sprintf("workspaces/%s/projects", ws), c.project)
		if project == "" {
			c.log.Error("clockify: cannot save without a project", slog.String("workspace", c.workspace), slog.String("project", c.project))
			return ""
		}
		t.WorkspaceID, t.ProjectID = ws, project
	}
	method, path := EntryRequest(*t)
	var entry entryResponse
	if err := c.do(ctx, method, path, NewEntryBody(*t), &entry); err != nil {
		c.log.Error("clockify: save time entry failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return ""
	}
	c.log.Debug("clockify: saved time entry", slog.String("method", method), slog.String("id", entry.ID))
	return entry.ID
}

// EntryRequest returns the method and collection-relative path used to save
// t: POST to the collection for new entries, PUT to the entry otherwise.
func EntryRequest(t domain.Tracker) (method, path string) {
	path = fmt.Sprintf("workspaces/%s/time-entries", t.WorkspaceID)
	if t.ID == "" {
		return http.MethodPost, path
	}
	return http.MethodPut, path + "/" + t.ID
}

// EntryBody is the request payload for creating or updating a time entry.
type EntryBody struct {
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
}

// NewEntryBody builds the payload; End is only set once the timer stopped.
func NewEntryBody(t domain.Tracker) EntryBody {
	b := EntryBody{
		Start:       formatTimestamp(t.Start()),
		Description: t.Description,
		ProjectID:   t.ProjectID,
	}
	if end := t.End(); end != 0 {
		b.End = formatTimestamp(end)
	}
	return b
}

func formatTimestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(timestampLayout)
}

type entryResponse struct {
	ID string `json:"id"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.apiToken == "" {
		return errors.New("missing api token")
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("clockify: unexpected status %d: %s", resp.StatusCode, string(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
