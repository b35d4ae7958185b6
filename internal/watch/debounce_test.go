package watch

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerCollapsesRapidTriggersIntoOne(t *testing.T) {
	var mu sync.Mutex
	var fired []string
	d := newDebouncer(30*time.Millisecond, func(key string) {
		mu.Lock()
		fired = append(fired, key)
		mu.Unlock()
	})

	d.trigger("a")
	time.Sleep(10 * time.Millisecond)
	d.trigger("a")
	time.Sleep(10 * time.Millisecond)
	d.trigger("a")

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Fatalf("expected exactly one firing, got %v", fired)
	}
}

func TestDebouncerTracksKeysIndependently(t *testing.T) {
	var mu sync.Mutex
	fired := make(map[string]int)
	d := newDebouncer(20*time.Millisecond, func(key string) {
		mu.Lock()
		fired[key]++
		mu.Unlock()
	})

	d.trigger("a")
	d.trigger("b")
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired["a"] != 1 || fired["b"] != 1 {
		t.Fatalf("expected each key to fire once, got %v", fired)
	}
}

func TestDebouncerCancelSuppressesFiring(t *testing.T) {
	fired := false
	d := newDebouncer(20*time.Millisecond, func(key string) { fired = true })
	d.trigger("a")
	d.cancel()
	time.Sleep(50 * time.Millisecond)
	if fired {
		t.Fatal("expected cancel to suppress the pending firing")
	}
}
