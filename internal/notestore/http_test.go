package notestore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// newTestStore returns a server that answers every action from the given
// handler map, recording received requests.
func newTestStore(t *testing.T, handlers map[string]any) (*httptest.Server, *[]actionRequest) {
	t.Helper()
	var received []actionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		var raw struct {
			Action  string          `json:"action"`
			Version int             `json:"version"`
			Params  json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		req.Action = raw.Action
		req.Version = raw.Version
		received = append(received, req)

		result, ok := handlers[raw.Action]
		if !ok {
			msg := "unsupported action: " + raw.Action
			json.NewEncoder(w).Encode(map[string]any{"result": nil, "error": msg})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil})
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestFindNotes(t *testing.T) {
	srv, received := newTestStore(t, map[string]any{
		"findNotes": []int64{101, 102, 103},
	})

	c := NewHTTPClient(srv.URL, 6)
	ids, err := c.FindNotes(context.Background(), `deck:"Bank"`)
	if err != nil {
		t.Fatalf("FindNotes failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != 101 {
		t.Errorf("unexpected ids: %v", ids)
	}
	if (*received)[0].Version != 6 {
		t.Errorf("protocol version not sent, got %d", (*received)[0].Version)
	}
}

func TestNotesInfoEmptyInputSkipsCall(t *testing.T) {
	srv, received := newTestStore(t, nil)

	c := NewHTTPClient(srv.URL, 6)
	notes, err := c.NotesInfo(context.Background(), nil)
	if err != nil {
		t.Fatalf("NotesInfo failed: %v", err)
	}
	if notes != nil {
		t.Errorf("expected nil notes, got %v", notes)
	}
	if len(*received) != 0 {
		t.Error("empty input should not hit the store")
	}
}

func TestStoreErrorIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": nil, "error": "deck not found"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 6)
	_, err := c.FindNotes(context.Background(), "deck:nope")
	if err == nil {
		t.Fatal("expected error")
	}
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.KindStore {
		t.Errorf("expected KindStore, got %v (classified=%v)", kind, ok)
	}
	if !errs.IsRetryable(err) {
		t.Error("store errors should be retryable")
	}
}

func TestUnreachableStore(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 6)
	_, err := c.Version(context.Background())
	if err == nil {
		t.Fatal("expected error for unreachable store")
	}
	if kind, _ := errs.KindOf(err); kind != errs.KindStore {
		t.Errorf("expected KindStore, got %v", kind)
	}
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 6)
	if _, err := c.FindNotes(context.Background(), "x"); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestAddNote(t *testing.T) {
	srv, _ := newTestStore(t, map[string]any{"addNote": int64(555)})

	c := NewHTTPClient(srv.URL, 6)
	id, err := c.AddNote(context.Background(), NewNote{
		Deck:   "Bank",
		Model:  "RecallMCQ",
		Fields: map[string]string{"Question": "q"},
		Tags:   []string{"id::item-1"},
	})
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if id != 555 {
		t.Errorf("id = %d, want 555", id)
	}
}

func TestNoteHelpers(t *testing.T) {
	n := Note{
		ID:   7,
		Tags: []string{"id::abc", "cycle::2026-08-25", "status::generated"},
		Fields: map[string]Field{
			"DomainPath": {Value: "med/cardio/valves"},
		},
	}

	if got := n.ItemID(); got != "abc" {
		t.Errorf("ItemID = %q", got)
	}
	if !n.HasTag(CycleTag("2026-08-25")) {
		t.Error("HasTag failed for cycle tag")
	}
	if n.HasTag(TagRetired) {
		t.Error("unexpected retired tag")
	}
	if got := n.FieldValue("DomainPath"); got != "med/cardio/valves" {
		t.Errorf("FieldValue = %q", got)
	}
	if got := BaseQuery("Bank", "RecallMCQ"); got != `deck:"Bank" note:"RecallMCQ"` {
		t.Errorf("BaseQuery = %q", got)
	}
}
