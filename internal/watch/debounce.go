package watch

import (
	"sync"
	"time"
)

// debouncer coalesces rapid triggers for one key into a single call to
// action after the key has been quiet for duration. Safe for concurrent
// use by multiple keys; each key gets its own timer.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	action   func(key string)
	timers   map[string]*time.Timer
	seq      map[string]uint64
}

func newDebouncer(duration time.Duration, action func(key string)) *debouncer {
	return &debouncer{
		duration: duration,
		action:   action,
		timers:   make(map[string]*time.Timer),
		seq:      make(map[string]uint64),
	}
}

// trigger (re)starts the debounce timer for key. Repeated triggers for the
// same key within duration collapse into one firing.
func (d *debouncer) trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.seq[key]++
	current := d.seq[key]

	d.timers[key] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.seq[key] != current {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		delete(d.seq, key)
		d.mu.Unlock()
		d.action(key)
	})
}

// cancel stops every pending timer without firing its action.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, t := range d.timers {
		t.Stop()
		delete(d.timers, k)
		delete(d.seq, k)
	}
}
