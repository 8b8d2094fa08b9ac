package main

import (
	"bytes"
	"chatly-client/internal/chat"
	"chatly-client/internal/engine"
	"context"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type nopChannel struct{}

func (nopChannel) On(string, func([]byte)) func() { return func() {} }

// echoRequester confirms every message with sequential ids
type echoRequester struct {
	self  string
	users []chat.User

	mu        sync.Mutex
	sent      int
	loggedOut bool
}

func (r *echoRequester) SendMessage(_ context.Context, peerID, text string, image *chat.Attachment) (chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++

	m := chat.Message{ID: "m" + string(rune('0'+r.sent)), Sender: r.self, Receiver: peerID, Text: text}
	if image != nil {
		m.Image = "http://cdn/" + image.Name
	}
	return m, nil
}

func (r *echoRequester) FetchOtherUsers(context.Context) ([]chat.User, error) {
	return r.users, nil
}

func (r *echoRequester) Logout(context.Context) error {
	r.mu.Lock()
	r.loggedOut = true
	r.mu.Unlock()
	return nil
}

func bootstrapConsole(t *testing.T) (*console, *bytes.Buffer, *echoRequester) {
	requester := &echoRequester{
		self:  "me",
		users: []chat.User{{ID: "me", Name: "Me"}, {ID: "u1", Name: "Alice"}, {ID: "u2", UserName: "bob"}},
	}

	e, err := engine.New(zap.NewNop().Sugar(), "me", nopChannel{}, requester)
	require.NoError(t, err)
	require.NoError(t, e.Open())
	t.Cleanup(e.Close)

	require.NoError(t, e.LoadContacts(context.Background()))

	out := &bytes.Buffer{}
	c := newConsole(zap.NewNop().Sugar(), e, out)
	t.Cleanup(c.close)

	return c, out, requester
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		cmd  string
		arg  string
	}{
		{"hello there", "", "hello there"},
		{"/select u1", "select", "u1"},
		{"/SEARCH  al ", "search", "al"},
		{"/roster", "roster", ""},
	}

	for _, tt := range tests {
		cmd, arg := parseCommand(tt.line)
		require.Equal(t, tt.cmd, cmd, tt.line)
		require.Equal(t, tt.arg, arg, tt.line)
	}
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "you: hi", formatMessage(chat.Message{Sender: "me", Text: "hi"}, "me"))
	require.Equal(t, "u1: [image http://x/y.png]", formatMessage(chat.Message{Sender: "u1", Image: "http://x/y.png"}, "me"))
}

func TestFormatRoster(t *testing.T) {
	t.Parallel()

	r := engine.ComposeRoster(
		[]chat.User{{ID: "u1", Name: "Alice"}, {ID: "u2", UserName: "bob"}},
		"",
		engine.NewOnlineSet([]string{"u2"}),
	)
	require.Equal(t, "  Alice (u1)\n* bob (u2)\n", formatRoster(r))

	require.Equal(t, "no contacts found\n", formatRoster(engine.Roster{Status: engine.RosterEmpty, NoneOnline: true}))
	require.Equal(t, "loading contacts...\n", formatRoster(engine.Roster{Status: engine.RosterLoading}))
}

func TestConsoleSendsToSelectedContact(t *testing.T) {
	t.Parallel()

	c, out, requester := bootstrapConsole(t)

	input := strings.Join([]string{"hello?", "/select u1", "hi alice", "/quit", "never sent"}, "\n")
	require.NoError(t, c.run(context.Background(), strings.NewReader(input)))

	require.Contains(t, out.String(), "! no conversation selected")
	require.Contains(t, out.String(), "you: hi alice\n")
	require.Equal(t, 1, requester.sent)
}

func TestConsoleSendsImage(t *testing.T) {
	t.Parallel()

	c, out, _ := bootstrapConsole(t)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, ioutil.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	input := strings.Join([]string{"/select u2", "/image " + path, "look"}, "\n")
	require.NoError(t, c.run(context.Background(), strings.NewReader(input)))

	require.Contains(t, out.String(), "* attached cat.png")
	require.Contains(t, out.String(), "you: look [image http://cdn/cat.png]")
}

func TestConsoleSearchAndLogout(t *testing.T) {
	t.Parallel()

	c, out, requester := bootstrapConsole(t)

	input := strings.Join([]string{"/search BO", "/logout"}, "\n")
	require.NoError(t, c.run(context.Background(), strings.NewReader(input)))

	require.Contains(t, out.String(), "  bob (u2)\nno one is online\n")
	require.NotContains(t, out.String(), "Alice")
	require.True(t, requester.loggedOut)
}

func TestLoadAttachment(t *testing.T) {
	t.Parallel()

	_, err := loadAttachment("")
	require.Error(t, err)

	_, err = loadAttachment(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}
