package engine

import (
	"chatly-client/internal/chat"
	"sync"
)

// Filter returns messages exchanged between self and peer in canonical order
// empty peer means no conversation is open and yields an empty result
func Filter(messages []chat.Message, self, peer string) []chat.Message {
	if peer == "" {
		return []chat.Message{}
	}

	filtered := make([]chat.Message, 0)
	for _, m := range messages {
		if m.Between(self, peer) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// ConversationView memoizes Filter on snapshot version and peer
type ConversationView struct {
	self string

	mu      sync.Mutex
	valid   bool
	version uint64
	peer    string
	result  []chat.Message
}

func NewConversationView(self string) *ConversationView {
	return &ConversationView{self: self}
}

// Messages returns conversation with peer derived from snapshot
func (v *ConversationView) Messages(snapshot Snapshot, peer string) []chat.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.valid || v.version != snapshot.Version || v.peer != peer {
		v.result = Filter(snapshot.Messages, v.self, peer)
		v.version = snapshot.Version
		v.peer = peer
		v.valid = true
	}

	result := make([]chat.Message, len(v.result))
	copy(result, v.result)
	return result
}
