package engine

import (
	"chatly-client/internal/chat"
	"go.uber.org/zap"
	"sync"
)

// Snapshot is a read-only copy of the canonical message list
// Version grows by one with every accepted append
type Snapshot struct {
	Version  uint64
	Messages []chat.Message
}

// Synchronizer owns the canonical, append-ordered and de-duplicated message list
type Synchronizer struct {
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	messages  []chat.Message
	seen      map[string]struct{}
	version   uint64
	listeners []snapshotListener
	nextID    int
}

type snapshotListener struct {
	id int
	fn func(Snapshot)
}

func NewSynchronizer(logger *zap.SugaredLogger) *Synchronizer {
	return &Synchronizer{
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// AppendConfirmed inserts a message returned by a successful send request
func (s *Synchronizer) AppendConfirmed(m chat.Message) (bool, error) {
	return s.append(m, "confirmed")
}

// AppendPushed inserts a message delivered through the push channel
func (s *Synchronizer) AppendPushed(m chat.Message) (bool, error) {
	return s.append(m, "pushed")
}

// append reports whether canonical list changed
// a message with already known id is a no-op, not an error
func (s *Synchronizer) append(m chat.Message, origin string) (bool, error) {
	if err := m.Validate(); err != nil {
		s.logger.Warnf("Rejecting %s message from %q to %q: %v", origin, m.Sender, m.Receiver, err)
		return false, err
	}

	s.mu.Lock()
	if _, ok := s.seen[m.ID]; ok {
		s.mu.Unlock()
		s.logger.Debugf("Skipping duplicate %s message (id: %s)", origin, m.ID)
		return false, nil
	}

	s.seen[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	s.version++
	snapshot := s.snapshotLocked()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Debugf("Appended %s message (id: %s) at position %d", origin, m.ID, len(snapshot.Messages)-1)

	for _, l := range listeners {
		l(snapshot)
	}

	return true, nil
}

// Snapshot returns a copy of the canonical list
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Len returns number of messages in the canonical list
func (s *Synchronizer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

// Subscribe registers l to be called with a fresh snapshot after every change
// returned function removes the listener
func (s *Synchronizer) Subscribe(l func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, snapshotListener{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	messages := make([]chat.Message, len(s.messages))
	copy(messages, s.messages)

	return Snapshot{
		Version:  s.version,
		Messages: messages,
	}
}

// listenersLocked returns listeners in subscription order
func (s *Synchronizer) listenersLocked() []func(Snapshot) {
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l.fn)
	}
	return fns
}
