package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingID        = errors.New("message has no id")
	ErrMalformedPayload = errors.New("malformed payload")
)

type User struct {
	ID       string
	Name     string
	UserName string
	Image    string
}

// DisplayName returns Name or UserName when Name is blank
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.UserName
}

type Message struct {
	ID       string
	Sender   string
	Receiver string
	Text     string
	Image    string
	// CreatedAt is informational only, zero when the server omits it
	CreatedAt time.Time
}

// Validate reports ErrMissingID for messages which cannot take part in de-duplication
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// Between reports whether message belongs to the conversation of a and b regardless of direction
func (m Message) Between(a, b string) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}

func (m Message) SentBy(user string) bool {
	return m.Sender == user
}

// Attachment is an image uploaded together with a message
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}
