package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/testutil"
	"github.com/starford/othala/internal/vault"
)

// testEnv sets up a temp vault, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (storage.Provider, http.Handler) {
	t.Helper()
	svc, store := testutil.TestService(t)
	router := NewRouter(svc, authToken != "", authToken, nil)
	return store, router
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{
		"path": "hello.md", "content": "---\ntitle: Hello\n---\nWorld",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/notes/hello.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Path != "hello.md" {
		t.Errorf("path = %q", note.Path)
	}
	if note.Title != "Hello" {
		t.Errorf("title = %q, want Hello", note.Title)
	}
	if note.Checksum == "" {
		t.Error("checksum missing")
	}
}

func TestGetNoteNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/notes/missing.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")

	body := map[string]string{"path": "dup.md", "content": "a"}
	if w := doJSON(t, router, http.MethodPost, "/notes", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/notes", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/notes", map[string]string{"path": "lock.md", "content": "v1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	var created NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// Stale checksum is rejected.
	raw, _ := json.Marshal(map[string]string{"content": "v2"})
	req := httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader(raw))
	req.Header.Set("If-Match", `"deadbeef"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", w.Code)
	}

	// Matching checksum succeeds.
	req = httptest.NewRequest(http.MethodPut, "/notes/lock.md", bytes.NewReader(raw))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("matching update = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestPatchFrontmatter(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("n.md", []byte("---\ntitle: Old\n---\nbody"))

	w := doJSON(t, router, http.MethodPatch, "/notes/n.md", map[string]any{
		"fields": map[string]any{"title": "New"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "New" {
		t.Errorf("title = %q, want New", note.Title)
	}
}

func TestDeleteCleansReferences(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("gone.md", []byte("target"))
	_ = store.Write("ref.md", []byte("see [[gone]] here"))

	w := doJSON(t, router, http.MethodDelete, "/notes/gone.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}

	data, err := store.Read("ref.md")
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "see gone here" {
		t.Errorf("referrer = %q", got)
	}
}

func TestRenameNote(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("old.md", []byte("target"))
	_ = store.Write("ref.md", []byte("see [[old]]"))

	w := doJSON(t, router, http.MethodPost, "/notes/rename", map[string]any{
		"from": "old.md", "to": "new.md",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}

	var res vault.BatchResult[vault.RenameResult]
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Data.To != "new.md" {
		t.Errorf("to = %q", res.Data.To)
	}

	data, _ := store.Read("ref.md")
	if got := string(data); got != "see [[new]]" {
		t.Errorf("referrer = %q", got)
	}
}

func TestListNotesByFolder(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("a.md", []byte("a"))
	_ = store.Write("sub/b.md", []byte("b"))

	w := doJSON(t, router, http.MethodGet, "/notes?folder=sub", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var res NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Total != 1 || res.Notes[0].Path != "sub/b.md" {
		t.Errorf("list = %+v", res)
	}
}

func TestSearchEndpoint(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("a.md", []byte("the quick fox"))
	_ = store.Write("b.md", []byte("nothing here"))

	w := doJSON(t, router, http.MethodGet, "/search?q=quick", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var res vault.BatchResult[[]vault.SearchHit]
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Data) != 1 || res.Data[0].Path != "a.md" {
		t.Errorf("hits = %+v", res.Data)
	}

	// Broken regex is the caller's fault.
	w = doJSON(t, router, http.MethodGet, "/search?q=%5B&regex=true", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad regex = %d, want 400", w.Code)
	}
}

func TestGraphEndpoints(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("a.md", []byte("[[b]]"))
	_ = store.Write("b.md", []byte("[[c]]"))
	_ = store.Write("c.md", []byte("end"))
	_ = store.Write("lonely.md", []byte("alone"))

	w := doJSON(t, router, http.MethodGet, "/graph/backlinks/b.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var env struct {
		Data []string `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	if len(env.Data) != 1 || env.Data[0] != "a.md" {
		t.Errorf("backlinks = %v", env.Data)
	}

	w = doJSON(t, router, http.MethodGet, "/graph/orphans", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	if len(env.Data) != 1 || env.Data[0] != "lonely.md" {
		t.Errorf("orphans = %v", env.Data)
	}

	w = doJSON(t, router, http.MethodGet, "/graph/path?from=a&to=c", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	want := []string{"a.md", "b.md", "c.md"}
	if len(env.Data) != 3 || env.Data[0] != want[0] || env.Data[2] != want[2] {
		t.Errorf("path = %v", env.Data)
	}

	w = doJSON(t, router, http.MethodGet, "/graph/stats", nil)
	if w.Code != http.StatusOK {
		t.Errorf("graph stats = %d", w.Code)
	}
}

func TestDuplicatesEndpoint(t *testing.T) {
	store, router := testEnv(t, "")
	_ = store.Write("a.md", []byte("identical content"))
	_ = store.Write("b.md", []byte("identical content"))

	w := doJSON(t, router, http.MethodGet, "/similar/duplicates?threshold=0.9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicates = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/similar/duplicates?threshold=2", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad threshold = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	store, router := testEnv(t, "secret")
	_ = store.Write("a.md", []byte("a"))

	// No token.
	w := doJSON(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	// Wrong token.
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", rec.Code)
	}

	// Malformed header (no scheme).
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("schemeless token = %d, want 401", rec.Code)
	}

	// Valid token.
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", rec.Code)
	}

	// Scheme match is case-insensitive per RFC 9110.
	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("lowercase scheme = %d, want 200", rec.Code)
	}
}
