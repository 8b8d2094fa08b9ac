package testing

import (
	"math/rand"
	"strings"
)

const (
	letters   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	hexDigits = "0123456789abcdef"
)

func randFrom(charSet string, length int) string {
	var out strings.Builder
	out.Grow(length)
	for i := 0; i < length; i++ {
		out.WriteByte(charSet[rand.Intn(len(charSet))])
	}
	return out.String()
}

// RandString generates random string with 10 symbols length from lower- and uppercase alphabet
func RandString() string {
	return randFrom(letters, 10)
}

// RandID generates 24 hex digits, the shape of ids issued by the chat server
func RandID() string {
	return randFrom(hexDigits, 24)
}
