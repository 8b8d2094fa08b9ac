package engine

import (
	"chatly-client/internal/chat"
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"sync"
)

// Push channel event names
const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "online-users"
)

var (
	ErrAlreadyOpen = errors.New("engine is already open")
	ErrClosed      = errors.New("engine is closed")
	ErrNoSelf      = errors.New("self id must not be empty")
)

// Channel is a server-initiated event stream
// On registers handler for event and returns function detaching it
type Channel interface {
	On(event string, handler func(data []byte)) (off func())
}

// Requester is the credentialed request collaborator
type Requester interface {
	MessageSender
	ContactFetcher
	Logout(ctx context.Context) error
}

// Engine wires synchronizer, presence tracker, roster and send pipeline to one push channel
type Engine struct {
	logger    *zap.SugaredLogger
	self      string
	channel   Channel
	requester Requester

	messages     *Synchronizer
	presence     *PresenceTracker
	roster       *RosterComposer
	pipeline     *SendPipeline
	conversation *ConversationView

	mu       sync.Mutex
	state    int
	detach   []func()
	selected string
}

const (
	stateNew = iota
	stateOpen
	stateClosed
)

// New returns Engine for self which is not yet attached to channel
func New(logger *zap.SugaredLogger, self string, channel Channel, requester Requester, opts ...Option) (*Engine, error) {
	if self == "" {
		return nil, ErrNoSelf
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	messages := NewSynchronizer(logger)
	presence := NewPresenceTracker(logger, cfg.clk, cfg.window)

	return &Engine{
		logger:       logger,
		self:         self,
		channel:      channel,
		requester:    requester,
		messages:     messages,
		presence:     presence,
		roster:       NewRosterComposer(logger, self, presence),
		pipeline:     NewSendPipeline(logger, requester, messages),
		conversation: NewConversationView(self),
	}, nil
}

// Open attaches exactly one listener per consumed event
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateOpen:
		return ErrAlreadyOpen
	case stateClosed:
		return ErrClosed
	}

	e.detach = []func(){
		e.channel.On(EventNewMessage, e.handleNewMessage),
		e.channel.On(EventOnlineUsers, e.handleOnlineUsers),
	}
	e.state = stateOpen

	e.logger.Infof("Engine is open for user %s", e.self)

	return nil
}

// Close detaches listeners and cancels pending presence update
func (e *Engine) Close() {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return
	}
	detach := e.detach
	e.detach = nil
	e.state = stateClosed
	e.mu.Unlock()

	for _, off := range detach {
		off()
	}
	e.presence.Close()

	e.logger.Info("Engine is closed")
}

func (e *Engine) handleNewMessage(data []byte) {
	m, err := chat.DecodeMessage(data)
	if err != nil {
		e.logger.Warnf("Dropping %s event: %v", EventNewMessage, err)
		return
	}

	if _, err := e.messages.AppendPushed(m); err != nil {
		e.logger.Warnf("Dropping %s event: %v", EventNewMessage, err)
	}
}

func (e *Engine) handleOnlineUsers(data []byte) {
	ids, err := chat.DecodeIDs(data)
	if err != nil {
		e.logger.Warnf("Dropping %s event: %v", EventOnlineUsers, err)
		return
	}

	e.presence.OnPresenceSnapshot(ids)
}

func (e *Engine) Self() string {
	return e.self
}

func (e *Engine) Messages() *Synchronizer {
	return e.messages
}

func (e *Engine) Presence() *PresenceTracker {
	return e.presence
}

// Select opens conversation with peer, empty peer closes it
func (e *Engine) Select(peer string) {
	e.mu.Lock()
	e.selected = peer
	e.mu.Unlock()
}

func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Conversation returns messages of currently selected conversation
func (e *Engine) Conversation() []chat.Message {
	return e.conversation.Messages(e.messages.Snapshot(), e.Selected())
}

// selectedIfActive returns selected peer or ErrClosed once Close was called
func (e *Engine) selectedIfActive() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateClosed {
		return "", ErrClosed
	}
	return e.selected, nil
}

// Send sends message to currently selected peer
func (e *Engine) Send(ctx context.Context, text string, image *chat.Attachment) (chat.Message, error) {
	peer, err := e.selectedIfActive()
	if err != nil {
		return chat.Message{}, err
	}
	return e.pipeline.Send(ctx, peer, text, image)
}

// SendDraft sends draft to currently selected peer
func (e *Engine) SendDraft(ctx context.Context, draft *Draft) (chat.Message, error) {
	peer, err := e.selectedIfActive()
	if err != nil {
		return chat.Message{}, err
	}
	return e.pipeline.SendDraft(ctx, peer, draft)
}

// LoadContacts fetches contact list through requester
func (e *Engine) LoadContacts(ctx context.Context) error {
	if _, err := e.selectedIfActive(); err != nil {
		return err
	}
	return e.roster.Load(ctx, e.requester)
}

func (e *Engine) SetSearch(search string) {
	e.roster.SetSearch(search)
}

func (e *Engine) Roster() Roster {
	return e.roster.View()
}

// Logout ends the session and forgets contacts, selection and presence
func (e *Engine) Logout(ctx context.Context) error {
	if _, err := e.selectedIfActive(); err != nil {
		return err
	}

	if err := e.requester.Logout(ctx); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}

	e.roster.Reset()
	e.presence.Reset()
	e.Select("")

	e.logger.Infof("User %s is logged out", e.self)

	return nil
}
