package cache

import (
	"fmt"
	"testing"
	"time"
)

func testCache(t *testing.T, maxSize int64, maxItems int, ttl time.Duration) *Cache[string] {
	t.Helper()
	c, err := New[string](maxSize, maxItems, ttl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func keys(c *Cache[string], candidates ...string) []string {
	var out []string
	for _, k := range candidates {
		if c.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func TestNew_RejectsBadLimits(t *testing.T) {
	cases := []struct {
		maxSize  int64
		maxItems int
		ttl      time.Duration
	}{
		{-1, 10, time.Minute},
		{100, 0, time.Minute},
		{100, -5, time.Minute},
		{100, 10, 0},
	}
	for _, tc := range cases {
		if _, err := New[string](tc.maxSize, tc.maxItems, tc.ttl); err == nil {
			t.Errorf("New(%d, %d, %s) should fail", tc.maxSize, tc.maxItems, tc.ttl)
		}
	}
}

func TestSet_EvictsOldestWhenFull(t *testing.T) {
	c := testCache(t, 300, 10, time.Minute)
	c.Set("a", "1", 100)
	c.Set("b", "2", 100)
	c.Set("c", "3", 100)
	c.Set("d", "4", 100)

	if c.Has("a") {
		t.Error("a should have been evicted as oldest")
	}
	got := keys(c, "b", "c", "d")
	if len(got) != 3 {
		t.Errorf("surviving keys = %v, want [b c d]", got)
	}
}

func TestGet_RefreshesRecency(t *testing.T) {
	c := testCache(t, 300, 10, time.Minute)
	c.Set("a", "1", 100)
	c.Set("b", "2", 100)
	c.Set("c", "3", 100)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Set("d", "4", 100)

	if c.Has("b") {
		t.Error("b should have been evicted instead of a")
	}
	if !c.Has("a") {
		t.Error("a should have been retained after Get")
	}
}

func TestHas_DoesNotPerturbOrder(t *testing.T) {
	c := testCache(t, 300, 10, time.Minute)
	c.Set("a", "1", 100)
	c.Set("b", "2", 100)
	c.Set("c", "3", 100)
	// Unlike Get, Has must not rescue "a" from eviction.
	if !c.Has("a") {
		t.Fatal("a should be present")
	}
	c.Set("d", "4", 100)
	if c.Has("a") {
		t.Error("a should still be the LRU victim after Has")
	}
}

func TestSet_OversizedIsNoOp(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("small", "x", 50)
	c.Set("big", "y", 101)

	if c.Has("big") {
		t.Error("oversized entry must never be stored")
	}
	if !c.Has("small") {
		t.Error("oversized set must not evict existing entries")
	}
}

func TestSet_ExactBudgetBoundary(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("exact", "x", 100)
	st := c.GetStats()
	if st.ItemCount != 1 || st.TotalSize != 100 {
		t.Errorf("stats = %+v, want 1 item of 100 bytes", st)
	}
}

func TestSet_ReplaceRefundsSize(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("k", "v1", 80)
	c.Set("k", "v2", 60)
	st := c.GetStats()
	if st.TotalSize != 60 {
		t.Errorf("total size = %d, want 60 after replace", st.TotalSize)
	}
	v, _ := c.Get("k")
	if v != "v2" {
		t.Errorf("value = %q, want v2", v)
	}
}

func TestSet_NegativeSizeClamped(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("k", "v", -50)
	c.Delete("k")
	if st := c.GetStats(); st.TotalSize != 0 {
		t.Errorf("total size = %d, want 0", st.TotalSize)
	}
}

func TestTTL_ExpiredTreatedAsMiss(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Set("k", "v", 10)
	clock = clock.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should be a miss")
	}
	if st := c.GetStats(); st.ItemCount != 0 || st.TotalSize != 0 {
		t.Errorf("expired entry should be purged, stats = %+v", st)
	}
}

func TestTTL_AccessExtendsLifetime(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Set("k", "v", 10)
	clock = clock.Add(40 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live")
	}
	// TTL runs from last access, so another 40s is still inside it.
	clock = clock.Add(40 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("access should have reset the TTL window")
	}
}

func TestSet_PurgesExpiredBeforeEvictingLive(t *testing.T) {
	c := testCache(t, 200, 10, time.Minute)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Set("stale", "x", 100)
	clock = clock.Add(2 * time.Minute)
	c.Set("live", "y", 100)
	c.Set("new", "z", 100)

	if c.Has("stale") {
		t.Error("stale entry should have been purged")
	}
	if !c.Has("live") || !c.Has("new") {
		t.Error("live entries should survive when an expired one can be purged instead")
	}
}

func TestDelete(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("k", "v", 30)
	if !c.Delete("k") {
		t.Error("Delete should report existing entry")
	}
	if c.Delete("k") {
		t.Error("second Delete should report absence")
	}
	if st := c.GetStats(); st.TotalSize != 0 {
		t.Errorf("size not refunded: %d", st.TotalSize)
	}
}

func TestClear(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("a", "1", 10)
	c.Set("b", "2", 10)
	c.Clear()
	st := c.GetStats()
	if st.ItemCount != 0 || st.TotalSize != 0 {
		t.Errorf("stats after Clear = %+v", st)
	}
}

func TestGetStats_AverageAccessCount(t *testing.T) {
	c := testCache(t, 100, 10, time.Minute)
	c.Set("a", "1", 10)
	c.Set("b", "2", 10)
	c.Get("a")
	c.Get("a")
	st := c.GetStats()
	if st.AverageAccessCount != 1.0 {
		t.Errorf("average access count = %v, want 1.0", st.AverageAccessCount)
	}
}

func TestInvariants_UnderChurn(t *testing.T) {
	const maxSize, maxItems = 500, 7
	c := testCache(t, maxSize, maxItems, time.Minute)
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("k%d", i%13), "v", int64(i%90))
		st := c.GetStats()
		if st.TotalSize > maxSize {
			t.Fatalf("step %d: total size %d exceeds budget", i, st.TotalSize)
		}
		if st.ItemCount > maxItems {
			t.Fatalf("step %d: item count %d exceeds limit", i, st.ItemCount)
		}
	}
}

func TestZeroMaxSize_PermanentlyEmpty(t *testing.T) {
	c := testCache(t, 0, 10, time.Minute)
	c.Set("k", "v", 1)
	c.Set("empty", "v", 0)
	if st := c.GetStats(); st.ItemCount > 1 {
		t.Errorf("zero-budget cache stored sized entries: %+v", st)
	}
	if c.Has("k") {
		t.Error("sized entry must not fit in a zero-budget cache")
	}
}
