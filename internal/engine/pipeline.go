package engine

import (
	"chatly-client/internal/chat"
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"strings"
	"sync"
)

var (
	ErrEmptyMessage = errors.New("message has neither text nor image")
	ErrNoPeer       = errors.New("no conversation selected")
)

// MessageSender delivers one message to the server and returns it as persisted
type MessageSender interface {
	SendMessage(ctx context.Context, peerID, text string, image *chat.Attachment) (chat.Message, error)
}

// Draft is the compose state visible to the user
type Draft struct {
	mu    sync.Mutex
	text  string
	image *chat.Attachment
}

func (d *Draft) SetText(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
}

func (d *Draft) SetImage(image *chat.Attachment) {
	d.mu.Lock()
	d.image = image
	d.mu.Unlock()
}

func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

func (d *Draft) Image() *chat.Attachment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.image
}

// take returns draft content and clears it unless it is empty
func (d *Draft) take() (string, *chat.Attachment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if isBlank(d.text, d.image) {
		return "", nil, false
	}

	text, image := d.text, d.image
	d.text, d.image = "", nil
	return text, image, true
}

// restore puts content back only if user has not started a new message meanwhile
func (d *Draft) restore(text string, image *chat.Attachment) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.text != "" || d.image != nil {
		return false
	}
	d.text, d.image = text, image
	return true
}

func isBlank(text string, image *chat.Attachment) bool {
	return strings.TrimSpace(text) == "" && image == nil
}

// SendPipeline sends one outbound message and appends the confirmed result.
// There is no optimistic insertion: a message reaches the canonical list only after the server returns it.
type SendPipeline struct {
	logger   *zap.SugaredLogger
	sender   MessageSender
	messages *Synchronizer
}

func NewSendPipeline(logger *zap.SugaredLogger, sender MessageSender, messages *Synchronizer) *SendPipeline {
	return &SendPipeline{
		logger:   logger,
		sender:   sender,
		messages: messages,
	}
}

// Send fails fast with ErrEmptyMessage when there is nothing to send
func (p *SendPipeline) Send(ctx context.Context, peerID, text string, image *chat.Attachment) (chat.Message, error) {
	if isBlank(text, image) {
		return chat.Message{}, ErrEmptyMessage
	}
	if peerID == "" {
		return chat.Message{}, ErrNoPeer
	}

	p.logger.Debugf("Sending message to %s (text: %d bytes, image: %t)", peerID, len(text), image != nil)

	m, err := p.sender.SendMessage(ctx, peerID, text, image)
	if err != nil {
		return chat.Message{}, fmt.Errorf("sending message to %s: %w", peerID, err)
	}

	if _, err := p.messages.AppendConfirmed(m); err != nil {
		return chat.Message{}, fmt.Errorf("appending confirmed message: %w", err)
	}

	return m, nil
}

// SendDraft clears draft before the request is made and restores it if the request fails
func (p *SendPipeline) SendDraft(ctx context.Context, peerID string, draft *Draft) (chat.Message, error) {
	if peerID == "" {
		return chat.Message{}, ErrNoPeer
	}

	text, image, ok := draft.take()
	if !ok {
		return chat.Message{}, ErrEmptyMessage
	}

	m, err := p.Send(ctx, peerID, text, image)
	if err != nil {
		if draft.restore(text, image) {
			p.logger.Debugf("Restored draft after failed send to %s", peerID)
		}
		return chat.Message{}, err
	}

	return m, nil
}
