package engine

import (
	"chatly-client/internal/chat"
	"context"
	"fmt"
	"go.uber.org/zap"
	"strings"
	"sync"
)

type RosterStatus int

const (
	RosterReady RosterStatus = iota
	RosterLoading
	RosterEmpty
)

func (s RosterStatus) String() string {
	switch s {
	case RosterReady:
		return "ready"
	case RosterLoading:
		return "loading"
	case RosterEmpty:
		return "empty"
	default:
		return fmt.Sprintf("RosterStatus(%d)", int(s))
	}
}

// Roster is the contact list view rendered by the UI
type Roster struct {
	All    []chat.User
	Online []chat.User
	Status RosterStatus
	// NoneOnline is set when no contact matching search is online
	NoneOnline bool
}

// ComposeRoster filters contacts by case-insensitive substring of display name
// and picks those present in online
func ComposeRoster(contacts []chat.User, search string, online OnlineSet) Roster {
	needle := strings.ToLower(search)

	all := make([]chat.User, 0, len(contacts))
	for _, u := range contacts {
		if strings.Contains(strings.ToLower(u.DisplayName()), needle) {
			all = append(all, u)
		}
	}

	onlineUsers := make([]chat.User, 0)
	for _, u := range all {
		if online.Contains(u.ID) {
			onlineUsers = append(onlineUsers, u)
		}
	}

	status := RosterReady
	if len(all) == 0 {
		status = RosterEmpty
	}

	return Roster{
		All:        all,
		Online:     onlineUsers,
		Status:     status,
		NoneOnline: len(onlineUsers) == 0,
	}
}

// ContactFetcher loads every user the session may talk to
type ContactFetcher interface {
	FetchOtherUsers(ctx context.Context) ([]chat.User, error)
}

// RosterComposer holds contact list, search string and loading flag
// and combines them with presence on demand
type RosterComposer struct {
	logger   *zap.SugaredLogger
	self     string
	presence *PresenceTracker

	mu       sync.Mutex
	contacts []chat.User
	search   string
	loading  bool
}

func NewRosterComposer(logger *zap.SugaredLogger, self string, presence *PresenceTracker) *RosterComposer {
	return &RosterComposer{
		logger:   logger,
		self:     self,
		presence: presence,
	}
}

// SetContacts replaces contact list, self is never part of it
func (r *RosterComposer) SetContacts(users []chat.User) {
	contacts := make([]chat.User, 0, len(users))
	for _, u := range users {
		if u.ID == r.self {
			continue
		}
		contacts = append(contacts, u)
	}

	r.mu.Lock()
	r.contacts = contacts
	r.mu.Unlock()
}

func (r *RosterComposer) SetSearch(search string) {
	r.mu.Lock()
	r.search = search
	r.mu.Unlock()
}

// SetLoading toggles loading state, it is driven by whoever fetches contacts
func (r *RosterComposer) SetLoading(loading bool) {
	r.mu.Lock()
	r.loading = loading
	r.mu.Unlock()
}

// Load fetches contacts and keeps loading flag set for the duration of the request
// on failure previous contacts are kept and error is returned
func (r *RosterComposer) Load(ctx context.Context, fetcher ContactFetcher) error {
	r.SetLoading(true)
	defer r.SetLoading(false)

	users, err := fetcher.FetchOtherUsers(ctx)
	if err != nil {
		return fmt.Errorf("fetching contacts: %w", err)
	}

	r.SetContacts(users)
	r.logger.Debugf("Loaded %d contacts", len(users))

	return nil
}

// View computes roster from current contacts, search and presence
func (r *RosterComposer) View() Roster {
	r.mu.Lock()
	contacts := r.contacts
	search := r.search
	loading := r.loading
	r.mu.Unlock()

	roster := ComposeRoster(contacts, search, r.presence.Current())
	if loading {
		roster.Status = RosterLoading
	}
	return roster
}

// Reset forgets contacts and search string
func (r *RosterComposer) Reset() {
	r.mu.Lock()
	r.contacts = nil
	r.search = ""
	r.loading = false
	r.mu.Unlock()
}
