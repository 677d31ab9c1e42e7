package handler

import (
	"fmt"
	"testing"
	"time"
)

func TestLimiterPoolReusesEntries(t *testing.T) {
	pool := newLimiterPool(5, 20)
	a := pool.get("wallet-a")
	if pool.get("wallet-a") != a {
		t.Fatalf("same key returned a different limiter")
	}
	if pool.get("wallet-b") == a {
		t.Fatalf("distinct keys share a limiter")
	}
}

func TestLimiterPoolEvictsIdleEntries(t *testing.T) {
	pool := newLimiterPool(5, 20)
	pool.maxEntries = 10

	for i := 0; i < pool.maxEntries; i++ {
		pool.get(fmt.Sprintf("wallet-%d", i))
	}
	stale := time.Now().Add(-2 * pool.idleAfter)
	for _, e := range pool.entries {
		e.lastSeen = stale
	}

	pool.get("wallet-new")
	if got := len(pool.entries); got != 1 {
		t.Fatalf("entries = %d after idle eviction, want 1", got)
	}
	if _, ok := pool.entries["wallet-new"]; !ok {
		t.Fatalf("fresh key missing after eviction")
	}
}

func TestLimiterPoolStaysBoundedUnderActiveKeys(t *testing.T) {
	pool := newLimiterPool(5, 20)
	pool.maxEntries = 10

	// All entries stay fresh; the pool must still not grow past the cap
	// by more than the newly inserted key.
	for i := 0; i < 5*pool.maxEntries; i++ {
		pool.get(fmt.Sprintf("wallet-%d", i))
		if got := len(pool.entries); got > pool.maxEntries+1 {
			t.Fatalf("entries = %d, cap %d", got, pool.maxEntries)
		}
	}
}
