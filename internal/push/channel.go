package push

import (
	"context"
	"errors"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"net/url"
	"sync"
	"time"
)

var (
	ErrClosed       = errors.New("push channel is closed")
	ErrInvalidFrame = errors.New("invalid push frame")
)

// Channel is a server-initiated named-event stream over a websocket connection.
// Frames are JSON text messages of form {"event": "<name>", "data": <payload>}.
type Channel struct {
	logger *zap.SugaredLogger
	cfg    config
	dialer *websocket.Dialer
	target string

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string][]*func([]byte)
	err      error

	// ctx is cancelled by Close and bounds reconnect attempts
	ctx       context.Context
	cancel    context.CancelFunc
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	parsers fastjson.ParserPool
}

// Dial connects to push endpoint and starts delivering events
func Dial(ctx context.Context, logger *zap.SugaredLogger, opts ...Option) (*Channel, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	target, err := url.Parse(cfg.url)
	if err != nil {
		return nil, fmt.Errorf("parsing push url: %w", err)
	}
	if cfg.userID != "" {
		q := target.Query()
		q.Set("userId", cfg.userID)
		target.RawQuery = q.Encode()
	}

	c := &Channel{
		logger:   logger,
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.handshake},
		target:   target.String(),
		handlers: make(map[string][]*func([]byte)),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	conn, err := c.dial(ctx)
	if err != nil {
		c.cancel()
		return nil, err
	}

	go c.run(conn)

	return c, nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.target, c.cfg.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %w (status %d)", c.target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", c.target, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Infof("Connected to push channel %s", c.target)

	return conn, nil
}

// On registers handler for event, handlers run on the read goroutine in arrival order
func (c *Channel) On(event string, handler func(data []byte)) func() {
	h := &handler

	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()

			handlers := c.handlers[event]
			for i, v := range handlers {
				if v == h {
					c.handlers[event] = append(handlers[:i:i], handlers[i+1:]...)
					break
				}
			}
			if len(c.handlers[event]) == 0 {
				delete(c.handlers, event)
			}
		})
	}
}

// Done is closed once the channel stops for good
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the channel, nil after Close
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends close frame, drops the connection and waits for the goroutines to exit
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.cancel()

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})

	<-c.done
	c.logger.Info("Push channel is closed")

	return nil
}

func (c *Channel) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

func (c *Channel) run(conn *websocket.Conn) {
	defer close(c.done)

	for {
		err := c.serve(conn)
		if c.isClosing() {
			return
		}

		c.logger.Warnf("Push connection lost: %v", err)

		if !c.cfg.reconnect {
			c.fail(err)
			return
		}

		conn, err = c.redial()
		if err != nil {
			if !errors.Is(err, ErrClosed) {
				c.fail(err)
			}
			return
		}
	}
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// redial retries with exponential backoff until it succeeds or channel is closed
func (c *Channel) redial() (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.reconnectMin
	b.MaxInterval = c.cfg.reconnectMax
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	dial := func() error {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.handshake)
		defer cancel()

		var err error
		conn, err = c.dial(ctx)
		return err
	}

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		c.logger.Warnf("Reconnect attempt %d failed: %v (next in %v)", attempt, err, wait)
	}

	err := backoff.RetryNotify(dial, backoff.WithContext(b, c.ctx), notify)
	if c.isClosing() {
		// Close may have run between dial and now and missed this connection
		if err == nil {
			_ = conn.Close()
		}
		return nil, ErrClosed
	}
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// serve pumps one connection until it breaks
func (c *Channel) serve(conn *websocket.Conn) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(conn, stop)
	}()

	err := c.readPump(conn)

	close(stop)
	wg.Wait()
	_ = conn.Close()

	return err
}

func (c *Channel) readPump(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.pongWait))

		event, data, err := c.decodeFrame(msg)
		if err != nil {
			c.logger.Warnf("Dropping frame: %v", err)
			continue
		}

		c.dispatch(event, data)
	}
}

func (c *Channel) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warnf("Error writing ping message: %v", err)
				_ = conn.Close()
				return
			}

		case <-stop:
			return
		}
	}
}

func (c *Channel) dispatch(event string, data []byte) {
	c.mu.Lock()
	handlers := append([]*func([]byte){}, c.handlers[event]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debugf("No handlers for event %q", event)
		return
	}

	for _, h := range handlers {
		(*h)(data)
	}
}

func (c *Channel) decodeFrame(msg []byte) (string, []byte, error) {
	parser := c.parsers.Get()
	defer c.parsers.Put(parser)

	v, err := parser.ParseBytes(msg)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	eventValue := v.Get("event")
	if eventValue == nil {
		return "", nil, fmt.Errorf("%w: missing field \"event\"", ErrInvalidFrame)
	}
	event, err := eventValue.StringBytes()
	if err != nil || len(event) == 0 {
		return "", nil, fmt.Errorf("%w: field \"event\" must be a non-empty string", ErrInvalidFrame)
	}

	var data []byte
	if dataValue := v.Get("data"); dataValue != nil {
		data = dataValue.MarshalTo(nil)
	} else {
		data = []byte("null")
	}

	return string(event), data, nil
}
