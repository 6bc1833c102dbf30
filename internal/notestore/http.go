package notestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// HTTPClient talks the JSON action protocol to a running note store.
type HTTPClient struct {
	url     string
	version int
	httpc   *http.Client
}

// NewHTTPClient creates a client for the store at url speaking the given
// protocol version.
func NewHTTPClient(url string, version int) *HTTPClient {
	return &HTTPClient{
		url:     url,
		version: version,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type actionRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type actionResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke posts one action and decodes its result into out (out may be nil
// for actions with no useful result).
func (c *HTTPClient) invoke(ctx context.Context, action string, params any, out any) error {
	body, err := json.Marshal(actionRequest{Action: action, Version: c.version, Params: params})
	if err != nil {
		return errs.Store("encode %s request", action).Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errs.Store("build %s request", action).Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errs.Store("note store unreachable: %s", action).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errs.Store("%s returned HTTP %d: %s", action, resp.StatusCode, snippet)
	}

	var ar actionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return errs.Store("decode %s response", action).Wrap(err)
	}
	if ar.Error != nil && *ar.Error != "" {
		return errs.Store("%s: %s", action, *ar.Error)
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return errs.Store("decode %s result", action).Wrap(err)
		}
	}
	return nil
}

// Version implements Client.
func (c *HTTPClient) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.invoke(ctx, "version", nil, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// FindNotes implements Client.
func (c *HTTPClient) FindNotes(ctx context.Context, query string) ([]int64, error) {
	var ids []int64
	err := c.invoke(ctx, "findNotes", map[string]any{"query": query}, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// NotesInfo implements Client.
func (c *HTTPClient) NotesInfo(ctx context.Context, ids []int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var notes []Note
	err := c.invoke(ctx, "notesInfo", map[string]any{"notes": ids}, &notes)
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// CardsInfo implements Client.
func (c *HTTPClient) CardsInfo(ctx context.Context, ids []int64) ([]Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var cards []Card
	err := c.invoke(ctx, "cardsInfo", map[string]any{"cards": ids}, &cards)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// AddNote implements Client.
func (c *HTTPClient) AddNote(ctx context.Context, note NewNote) (int64, error) {
	var id int64
	err := c.invoke(ctx, "addNote", map[string]any{"note": note}, &id)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errs.Store("addNote returned no id")
	}
	return id, nil
}

// UpdateNoteFields implements Client.
func (c *HTTPClient) UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error {
	params := map[string]any{"note": map[string]any{"id": id, "fields": fields}}
	return c.invoke(ctx, "updateNoteFields", params, nil)
}

// AddTags implements Client.
func (c *HTTPClient) AddTags(ctx context.Context, ids []int64, tag string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.invoke(ctx, "addTags", map[string]any{"notes": ids, "tags": tag}, nil)
}

// RemoveTags implements Client.
func (c *HTTPClient) RemoveTags(ctx context.Context, ids []int64, tag string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.invoke(ctx, "removeTags", map[string]any{"notes": ids, "tags": tag}, nil)
}

// ModelNames implements Client.
func (c *HTTPClient) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelFieldNames implements Client.
func (c *HTTPClient) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	var names []string
	err := c.invoke(ctx, "modelFieldNames", map[string]any{"modelName": model}, &names)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Sync implements Client.
func (c *HTTPClient) Sync(ctx context.Context) error {
	return c.invoke(ctx, "sync", nil, nil)
}

var _ Client = (*HTTPClient)(nil)

// String describes the client endpoint for logs.
func (c *HTTPClient) String() string {
	return fmt.Sprintf("notestore(%s v%d)", c.url, c.version)
}
