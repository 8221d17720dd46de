package pricing

import (
	"errors"
	"testing"
	"time"
)

func TestCacheCommitGenerationMismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := newKeyedCache[int](func() time.Time { return now }, 30*time.Second, 60*time.Second)

	dec := cache.begin("k")
	if dec.action != actionFetch {
		t.Fatalf("expected fetch on first begin, got %v", dec.action)
	}

	cache.invalidate("k")

	if cache.commit("k", dec.generation, 42, nil) {
		t.Fatalf("commit with a stale generation must be dropped")
	}
	if got := cache.state("k"); got != StateIdle {
		t.Fatalf("expected Idle after discarded commit, got %v", got)
	}
}

func TestCacheErrorState(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := newKeyedCache[int](func() time.Time { return now }, 30*time.Second, 60*time.Second)

	dec := cache.begin("k")
	wantErr := errors.New("upstream down")
	if !cache.commit("k", dec.generation, 0, wantErr) {
		t.Fatalf("expected error commit to land")
	}

	dec = cache.begin("k")
	if dec.action != actionError || !errors.Is(dec.err, wantErr) {
		t.Fatalf("expected terminal error, got action %v err %v", dec.action, dec.err)
	}

	cache.invalidate("k")
	dec = cache.begin("k")
	if dec.action != actionFetch {
		t.Fatalf("expected fetch after invalidate, got %v", dec.action)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := newKeyedCache[int](func() time.Time { return now }, 30*time.Second, 60*time.Second)

	for _, key := range []string{"a", "b"} {
		dec := cache.begin(key)
		cache.commit(key, dec.generation, 1, nil)
	}

	cache.invalidateAll()

	for _, key := range []string{"a", "b"} {
		if got := cache.state(key); got != StateIdle {
			t.Fatalf("key %s: expected Idle after invalidateAll, got %v", key, got)
		}
	}
}

func TestCacheExpireNeverBelowFresh(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	cache := newKeyedCache[int](clock, time.Minute, time.Second)

	dec := cache.begin("k")
	cache.commit("k", dec.generation, 1, nil)

	now = now.Add(30 * time.Second)
	dec = cache.begin("k")
	if dec.action != actionServe || dec.refresh {
		t.Fatalf("value within the freshness window must be served as-is, got action %v refresh %v", dec.action, dec.refresh)
	}
}
