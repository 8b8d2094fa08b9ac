package testing

import "chatly-client/internal/chat"

// Message returns a message with random id and text from sender to receiver
func Message(sender, receiver string) chat.Message {
	return chat.Message{
		ID:       RandID(),
		Sender:   sender,
		Receiver: receiver,
		Text:     RandString(),
	}
}

// Exchange returns n messages alternating direction between a and b, starting with a
// e.g. n = 3 -> [a->b, b->a, a->b]
func Exchange(a, b string, n int) []chat.Message {
	messages := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			messages = append(messages, Message(a, b))
		} else {
			messages = append(messages, Message(b, a))
		}
	}

	return messages
}
