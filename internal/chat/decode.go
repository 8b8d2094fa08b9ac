package chat

import (
	"fmt"
	"github.com/valyala/fastjson"
	"time"
)

var (
	messagePool fastjson.ParserPool
	usersPool   fastjson.ParserPool
	idsPool     fastjson.ParserPool
)

// DecodeMessage parses a single message object as sent by the chat server
func DecodeMessage(data []byte) (Message, error) {
	parser := messagePool.Get()
	defer messagePool.Put(parser)

	v, err := parser.ParseBytes(data)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return MessageFromValue(v)
}

// MessageFromValue extracts message fields from already parsed JSON value
func MessageFromValue(v *fastjson.Value) (Message, error) {
	if v.Type() != fastjson.TypeObject {
		return Message{}, fmt.Errorf("%w: message must be an object", ErrMalformedPayload)
	}

	var (
		m   Message
		err error
	)

	if m.ID, err = stringField(v, "_id", "id"); err != nil {
		return Message{}, err
	}
	if m.Sender, err = stringField(v, "sender"); err != nil {
		return Message{}, err
	}
	if m.Receiver, err = stringField(v, "receiver"); err != nil {
		return Message{}, err
	}
	if m.Text, err = stringField(v, "message", "text"); err != nil {
		return Message{}, err
	}
	if m.Image, err = stringField(v, "image"); err != nil {
		return Message{}, err
	}

	createdAt, err := stringField(v, "createdAt")
	if err != nil {
		return Message{}, err
	}
	if createdAt != "" {
		m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return Message{}, fmt.Errorf("%w: field \"createdAt\": %v", ErrMalformedPayload, err)
		}
	}

	return m, nil
}

// DecodeUsers parses an array of user objects
func DecodeUsers(data []byte) ([]User, error) {
	parser := usersPool.Get()
	defer usersPool.Put(parser)

	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	values, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: users must be an array", ErrMalformedPayload)
	}

	users := make([]User, 0, len(values))
	for _, item := range values {
		if item.Type() != fastjson.TypeObject {
			return nil, fmt.Errorf("%w: each user must be an object", ErrMalformedPayload)
		}

		var u User
		if u.ID, err = stringField(item, "_id", "id"); err != nil {
			return nil, err
		}
		if u.Name, err = stringField(item, "name"); err != nil {
			return nil, err
		}
		if u.UserName, err = stringField(item, "userName"); err != nil {
			return nil, err
		}
		if u.Image, err = stringField(item, "image"); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, nil
}

// DecodeIDs parses an array of user identifiers (the "online-users" payload)
func DecodeIDs(data []byte) ([]string, error) {
	parser := idsPool.Get()
	defer idsPool.Put(parser)

	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	values, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: ids must be an array", ErrMalformedPayload)
	}

	ids := make([]string, 0, len(values))
	for _, item := range values {
		id, err := item.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("%w: each id must be a string", ErrMalformedPayload)
		}
		ids = append(ids, string(id))
	}

	return ids, nil
}

// stringField returns the first present key among keys
// missing and null fields yield an empty string, any other non-string type is an error
func stringField(v *fastjson.Value, keys ...string) (string, error) {
	for _, key := range keys {
		field := v.Get(key)
		if field == nil || field.Type() == fastjson.TypeNull {
			continue
		}

		b, err := field.StringBytes()
		if err != nil {
			return "", fmt.Errorf("%w: field %q must be a string", ErrMalformedPayload, key)
		}
		return string(b), nil
	}
	return "", nil
}
