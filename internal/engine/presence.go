package engine

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"sync"
	"time"
)

// OnlineSet is an immutable set of reachable user ids
type OnlineSet struct {
	ids   []string
	index map[string]struct{}
}

func NewOnlineSet(ids []string) OnlineSet {
	set := OnlineSet{
		ids:   make([]string, 0, len(ids)),
		index: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		if _, ok := set.index[id]; ok {
			continue
		}
		set.index[id] = struct{}{}
		set.ids = append(set.ids, id)
	}
	return set
}

func (s OnlineSet) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s OnlineSet) Len() int {
	return len(s.ids)
}

// IDs returns ids in the order the server sent them
func (s OnlineSet) IDs() []string {
	ids := make([]string, len(s.ids))
	copy(ids, s.ids)
	return ids
}

// PresenceTracker exposes a debounced OnlineSet built from wholesale snapshots pushed by the server.
// Only the last snapshot of a burst is applied, once window has passed without a newer one.
type PresenceTracker struct {
	logger *zap.SugaredLogger
	clk    clock.Clock
	window time.Duration

	mu         sync.Mutex
	current    OnlineSet
	pending    *clock.Timer
	generation uint64
	closed     bool
	listeners  []presenceListener
	nextID     int
}

type presenceListener struct {
	id int
	fn func(OnlineSet)
}

func NewPresenceTracker(logger *zap.SugaredLogger, clk clock.Clock, window time.Duration) *PresenceTracker {
	return &PresenceTracker{
		logger:  logger,
		clk:     clk,
		window:  window,
		current: NewOnlineSet(nil),
	}
}

// OnPresenceSnapshot schedules replacement of the exposed set with ids
// a previously scheduled replacement is cancelled
func (t *PresenceTracker) OnPresenceSnapshot(ids []string) {
	set := NewOnlineSet(ids)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if t.pending != nil {
		t.pending.Stop()
	}

	// timers which already fired but lost the race for mu see a newer generation and give up
	t.generation++
	generation := t.generation
	t.pending = t.clk.AfterFunc(t.window, func() {
		t.apply(generation, set)
	})

	t.logger.Debugf("Scheduled presence snapshot of %d users (generation %d)", set.Len(), generation)
}

func (t *PresenceTracker) apply(generation uint64, set OnlineSet) {
	t.mu.Lock()
	if t.closed || generation != t.generation {
		t.mu.Unlock()
		return
	}

	t.current = set
	t.pending = nil
	listeners := make([]func(OnlineSet), 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l.fn)
	}
	t.mu.Unlock()

	t.logger.Debugf("Applied presence snapshot of %d users (generation %d)", set.Len(), generation)

	for _, l := range listeners {
		l(set)
	}
}

// Current returns the last applied set, not necessarily the latest received one
func (t *PresenceTracker) Current() OnlineSet {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}

// Subscribe registers l to be called after each applied replacement
func (t *PresenceTracker) Subscribe(l func(OnlineSet)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners = append(t.listeners, presenceListener{id: id, fn: l})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, l := range t.listeners {
				if l.id == id {
					t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Reset drops any pending replacement and exposes an empty set immediately
func (t *PresenceTracker) Reset() {
	t.mu.Lock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.generation++
	t.current = NewOnlineSet(nil)
	t.mu.Unlock()
}

// Close cancels pending replacement, no replacement is applied afterwards
func (t *PresenceTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.closed = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.listeners = nil

	t.logger.Debug("Presence tracker is closed")
}
