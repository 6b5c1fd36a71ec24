package vault

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/cache"
	"github.com/starford/othala/internal/similarity"
	"github.com/starford/othala/internal/storage"
)

func testService(t *testing.T) (*Service, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	content, err := cache.New[[]byte](1<<20, 256, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	queries, err := cache.New[[]byte](1<<20, 64, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	detect := similarity.NewDetector(store, similarity.Options{})
	return NewService(store, content, queries, detect), store
}

func TestGetNote_ReadThroughCache(t *testing.T) {
	svc, store := testService(t)
	_ = store.Write("n.md", []byte("---\ntitle: N\n---\nbody #tag"))

	n, err := svc.GetNote(context.Background(), "n")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Path != "n.md" || n.Title != "N" {
		t.Errorf("note = %+v", n)
	}
	if !reflect.DeepEqual(n.Tags, []string{"tag"}) {
		t.Errorf("tags = %v", n.Tags)
	}
	if !svc.content.Has("n.md") {
		t.Error("read should have populated the content cache")
	}
}

func TestGetNote_NotFound(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.GetNote(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateNote_Conflict(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateNote(context.Background(), "a.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateNote(context.Background(), "a", []byte("y")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateNote_OptimisticConcurrency(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	n, err := svc.CreateNote(ctx, "a.md", []byte("v1"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateNote(ctx, "a.md", []byte("v2"), "bogus-checksum"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if _, err := svc.UpdateNote(ctx, "a.md", []byte("v2"), n.Checksum); err != nil {
		t.Errorf("matching checksum should pass: %v", err)
	}
}

func TestUpdateFrontmatter_MergeAndRemove(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "fm.md", []byte("---\ntitle: Old\nkeep: yes\n---\nbody"))

	n, err := svc.UpdateFrontmatter(ctx, "fm.md", map[string]any{
		"title": "New",
		"keep":  nil,
	})
	if err != nil {
		t.Fatalf("UpdateFrontmatter: %v", err)
	}
	if n.Title != "New" {
		t.Errorf("title = %q", n.Title)
	}
	if _, ok := n.Frontmatter["keep"]; ok {
		t.Error("nil field should have been removed")
	}
	if !strings.Contains(n.Content, "body") {
		t.Error("body lost during frontmatter update")
	}
}

func TestWrite_InvalidatesGraph(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "a.md", []byte("[[b]]"))
	_, _ = svc.CreateNote(ctx, "b.md", []byte(""))

	bl, _, err := svc.Graph().Backlinks(ctx, "b.md")
	if err != nil || len(bl) != 1 {
		t.Fatalf("backlinks = %v, err = %v", bl, err)
	}

	if _, err := svc.UpdateNote(ctx, "a.md", []byte("no links now"), ""); err != nil {
		t.Fatal(err)
	}
	bl, _, err = svc.Graph().Backlinks(ctx, "b.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 0 {
		t.Errorf("graph not invalidated on write: %v", bl)
	}
}

func TestRenameNote_UpdatesReferrers(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "old.md", []byte("content survives"))
	_, _ = svc.CreateNote(ctx, "other.md", []byte("see [[old]] here"))

	res, err := svc.RenameNote(ctx, "old.md", "new.md", true)
	if err != nil {
		t.Fatalf("RenameNote: %v", err)
	}
	if res.Metadata.ErrorCount != 0 {
		t.Errorf("errors = %v", res.Errors)
	}
	if !reflect.DeepEqual(res.Data.UpdatedRefs, []string{"other.md"}) {
		t.Errorf("updated refs = %v", res.Data.UpdatedRefs)
	}

	data, err := store.Read("other.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[[new]]") || strings.Contains(string(data), "[[old]]") {
		t.Errorf("referrer content = %q", data)
	}

	// Old path gone, content preserved at the new one.
	if store.Exists("old.md") {
		t.Error("old path must not exist after rename")
	}
	n, err := svc.GetNote(ctx, "new.md")
	if err != nil || n.Content != "content survives" {
		t.Errorf("note = %+v, err = %v", n, err)
	}

	// Graph reflects the new target.
	fl, _, err := svc.Graph().ForwardLinks(ctx, "other.md")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(fl, []string{"new.md"}) {
		t.Errorf("forward links = %v, want [new.md]", fl)
	}
}

func TestRenameNote_AcrossDirectories(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "old.md", []byte("x"))
	_, _ = svc.CreateNote(ctx, "ref.md", []byte("[[old|shown]]"))

	if _, err := svc.RenameNote(ctx, "old.md", "archive/old.md", true); err != nil {
		t.Fatal(err)
	}
	data, _ := store.Read("ref.md")
	if !strings.Contains(string(data), "[[/archive/old|shown]]") {
		t.Errorf("ref content = %q", data)
	}
	fl, _, _ := svc.Graph().ForwardLinks(ctx, "ref.md")
	if !reflect.DeepEqual(fl, []string{"archive/old.md"}) {
		t.Errorf("forward links = %v", fl)
	}
}

func TestDeleteNote_CleansReferrers(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "gone.md", []byte("x"))
	_, _ = svc.CreateNote(ctx, "ref.md", []byte("see [[gone|that note]] end"))

	res, err := svc.DeleteNote(ctx, "gone.md", true)
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if !reflect.DeepEqual(res.Data, []string{"ref.md"}) {
		t.Errorf("cleaned = %v", res.Data)
	}
	data, _ := store.Read("ref.md")
	if string(data) != "see that note end" {
		t.Errorf("ref content = %q", data)
	}
	if store.Exists("gone.md") {
		t.Error("note should be deleted")
	}
}

func TestDeleteNote_NotFound(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.DeleteNote(context.Background(), "nope.md", false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearchText(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "a.md", []byte("alpha\nneedle here\nomega"))
	_, _ = svc.CreateNote(ctx, "b.md", []byte("nothing"))

	res, err := svc.SearchText(ctx, "needle", false)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("hits = %+v, want 1", res.Data)
	}
	hit := res.Data[0]
	if hit.Path != "a.md" || hit.Line != 2 || hit.Text != "needle here" {
		t.Errorf("hit = %+v", hit)
	}
	if res.Metadata.TotalProcessed != 2 || res.Metadata.ErrorCount != 0 {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestSearchText_Regex(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "a.md", []byte("version v1.2.3 released"))

	res, err := svc.SearchText(ctx, `v\d+\.\d+\.\d+`, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 1 {
		t.Errorf("hits = %+v", res.Data)
	}
	if _, err := svc.SearchText(ctx, `[unclosed`, true); err == nil {
		t.Error("invalid regex should error")
	}
}

func TestSearchText_CachedUntilMutation(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "a.md", []byte("needle"))

	if _, err := svc.SearchText(ctx, "needle", false); err != nil {
		t.Fatal(err)
	}
	if !svc.queries.Has("search:false:needle") {
		t.Fatal("search result should be in the query cache")
	}

	_, _ = svc.CreateNote(ctx, "b.md", []byte("another needle"))
	if svc.queries.Has("search:false:needle") {
		t.Error("mutation should clear the query cache")
	}
	res, err := svc.SearchText(ctx, "needle", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 2 {
		t.Errorf("hits after mutation = %+v", res.Data)
	}
}

func TestStats(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "a.md", []byte("#go #vault"))
	_, _ = svc.CreateNote(ctx, "b.md", []byte("#go"))

	res, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if res.Data.TotalNotes != 2 {
		t.Errorf("total notes = %d", res.Data.TotalNotes)
	}
	if res.Data.TagCounts["go"] != 2 || res.Data.TagCounts["vault"] != 1 {
		t.Errorf("tag counts = %v", res.Data.TagCounts)
	}
}

func TestNotify_FiresOnMutations(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	var events []string
	svc.SetNotify(func(kind, path string) { events = append(events, kind+":"+path) })

	_, _ = svc.CreateNote(ctx, "a.md", []byte("x"))
	_, _ = svc.UpdateNote(ctx, "a.md", []byte("y"), "")
	_, _ = svc.RenameNote(ctx, "a.md", "b.md", false)
	_, _ = svc.DeleteNote(ctx, "b.md", false)

	want := []string{"created:a.md", "updated:a.md", "renamed:b.md", "deleted:b.md"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestNotify_FiresForRewrittenReferrers(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	_ = store.Write("old.md", []byte("target"))
	_ = store.Write("ref.md", []byte("see [[old]]"))

	var events []string
	svc.SetNotify(func(kind, path string) { events = append(events, kind+":"+path) })

	if _, err := svc.RenameNote(ctx, "old.md", "new.md", true); err != nil {
		t.Fatalf("RenameNote: %v", err)
	}
	want := []string{"updated:ref.md", "renamed:new.md"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("rename events = %v, want %v", events, want)
	}

	events = nil
	_ = store.Write("gone.md", []byte("doomed"))
	_ = store.Write("ref2.md", []byte("see [[gone]]"))
	if _, err := svc.DeleteNote(ctx, "gone.md", true); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	want = []string{"updated:ref2.md", "deleted:gone.md"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("delete events = %v, want %v", events, want)
	}
}

func TestCacheStatistics(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, _ = svc.CreateNote(ctx, "a.md", []byte("body"))
	if _, err := svc.GetNote(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}

	stats := svc.CacheStatistics()
	if stats.Content.ItemCount == 0 {
		t.Error("content cache should hold the read note")
	}
	if stats.Content.MaxSize != 1<<20 {
		t.Errorf("max size = %d", stats.Content.MaxSize)
	}
}
