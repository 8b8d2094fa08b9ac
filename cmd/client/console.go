package main

import (
	"bufio"
	"chatly-client/internal/chat"
	"chatly-client/internal/engine"
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"io"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const sendTimeout = 30 * time.Second

var errQuit = errors.New("quit")

// console is a line based front end over Engine
// lines starting with slash are commands, everything else is sent to the selected contact
type console struct {
	logger *zap.SugaredLogger
	engine *engine.Engine
	draft  *engine.Draft

	mu    sync.Mutex
	out   io.Writer
	shown int

	unsubscribe []func()
}

func newConsole(logger *zap.SugaredLogger, e *engine.Engine, out io.Writer) *console {
	c := &console{
		logger: logger,
		engine: e,
		draft:  &engine.Draft{},
		out:    out,
	}

	c.unsubscribe = []func(){
		e.Messages().Subscribe(c.onSnapshot),
		e.Presence().Subscribe(func(set engine.OnlineSet) {
			c.printf("* %d users online\n", set.Len())
		}),
	}

	return c
}

func (c *console) close() {
	for _, off := range c.unsubscribe {
		off()
	}
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// onSnapshot prints messages appended since the previous call which belong to the open conversation
func (c *console) onSnapshot(s engine.Snapshot) {
	self, peer := c.engine.Self(), c.engine.Selected()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shown >= len(s.Messages) {
		return
	}
	for _, m := range s.Messages[c.shown:] {
		if peer != "" && m.Between(self, peer) {
			fmt.Fprintln(c.out, formatMessage(m, self))
		}
	}
	c.shown = len(s.Messages)
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := c.handle(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			c.logger.Debugf("Command %q failed: %v", line, err)
			c.printf("! %v\n", err)
		}
	}

	return scanner.Err()
}

func (c *console) handle(ctx context.Context, line string) error {
	cmd, arg := parseCommand(line)

	switch cmd {
	case "":
		c.draft.SetText(arg)
		return c.send(ctx)
	case "select":
		c.engine.Select(arg)
		c.printHistory()
	case "close":
		c.engine.Select("")
	case "search":
		c.engine.SetSearch(arg)
		c.printf("%s", formatRoster(c.engine.Roster()))
	case "roster":
		c.printf("%s", formatRoster(c.engine.Roster()))
	case "history":
		c.printHistory()
	case "image":
		image, err := loadAttachment(arg)
		if err != nil {
			return err
		}
		c.draft.SetImage(image)
		c.printf("* attached %s\n", image.Name)
	case "reload":
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := c.engine.LoadContacts(ctx); err != nil {
			return err
		}
		c.printf("%s", formatRoster(c.engine.Roster()))
	case "logout":
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := c.engine.Logout(ctx); err != nil {
			return err
		}
		return errQuit
	case "quit":
		return errQuit
	default:
		c.printf("commands: /select ID, /close, /search TEXT, /roster, /reload, /history, /image PATH, /logout, /quit\n")
	}

	return nil
}

func (c *console) send(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := c.engine.SendDraft(ctx, c.draft)
	return err
}

func (c *console) printHistory() {
	self := c.engine.Self()
	for _, m := range c.engine.Conversation() {
		c.printf("%s\n", formatMessage(m, self))
	}
}

// parseCommand splits "/name arg" into name and arg, plain text yields empty name
func parseCommand(line string) (string, string) {
	if !strings.HasPrefix(line, "/") {
		return "", line
	}

	parts := strings.SplitN(line[1:], " ", 2)
	cmd := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return cmd, ""
	}
	return cmd, strings.TrimSpace(parts[1])
}

func formatMessage(m chat.Message, self string) string {
	from := m.Sender
	if m.SentBy(self) {
		from = "you"
	}

	var b strings.Builder
	b.WriteString(from)
	b.WriteString(":")
	if m.Text != "" {
		b.WriteString(" ")
		b.WriteString(m.Text)
	}
	if m.Image != "" {
		b.WriteString(" [image ")
		b.WriteString(m.Image)
		b.WriteString("]")
	}
	return b.String()
}

func formatRoster(r engine.Roster) string {
	var b strings.Builder

	switch r.Status {
	case engine.RosterLoading:
		b.WriteString("loading contacts...\n")
		return b.String()
	case engine.RosterEmpty:
		b.WriteString("no contacts found\n")
		return b.String()
	}

	online := make(map[string]struct{}, len(r.Online))
	for _, u := range r.Online {
		online[u.ID] = struct{}{}
	}

	for _, u := range r.All {
		mark := " "
		if _, ok := online[u.ID]; ok {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", mark, u.DisplayName(), u.ID)
	}
	if r.NoneOnline {
		b.WriteString("no one is online\n")
	}

	return b.String()
}

func loadAttachment(path string) (*chat.Attachment, error) {
	if path == "" {
		return nil, errors.New("image path is required")
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	return &chat.Attachment{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}
