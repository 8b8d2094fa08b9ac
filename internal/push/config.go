package push

import (
	"net/http"
	"time"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Channel instance
type config struct {
	url          string
	header       http.Header
	userID       string
	handshake    time.Duration
	pongWait     time.Duration
	reconnect    bool
	reconnectMin time.Duration
	reconnectMax time.Duration
}

func defaultConfig() config {
	return config{
		url:          "ws://localhost:8000/ws",
		header:       make(http.Header),
		handshake:    10 * time.Second,
		pongWait:     60 * time.Second,
		reconnect:    true,
		reconnectMin: 500 * time.Millisecond,
		reconnectMax: 30 * time.Second,
	}
}

// pingPeriod must be less than pongWait
func (c config) pingPeriod() time.Duration {
	return (c.pongWait * 9) / 10
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	URL          string        `env:"CHAT_PUSH_URL" envDefault:"ws://localhost:8000/ws"`
	CookieName   string        `env:"CHAT_SESSION_COOKIE" envDefault:"token"`
	SessionToken string        `env:"CHAT_SESSION_TOKEN"`
	Reconnect    bool          `env:"CHAT_PUSH_RECONNECT" envDefault:"true"`
	ReconnectMax time.Duration `env:"CHAT_PUSH_RECONNECT_MAX" envDefault:"30s"`
	PongWait     time.Duration `env:"CHAT_PUSH_PONG_WAIT" envDefault:"60s"`
}

// WithEnvConfig uses EnvConfig as a source of Channel parameters
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.url = cfg.URL
		c.reconnect = cfg.Reconnect
		if cfg.ReconnectMax > 0 {
			c.reconnectMax = cfg.ReconnectMax
		}
		if cfg.PongWait > 0 {
			c.pongWait = cfg.PongWait
		}
		if cfg.SessionToken != "" {
			cookie := &http.Cookie{Name: cfg.CookieName, Value: cfg.SessionToken}
			c.header.Set("Cookie", cookie.String())
		}
	})
}

// URL sets websocket endpoint, e.g. ws://localhost:8000/ws
func URL(u string) Option {
	return optionFunc(func(c *config) {
		c.url = u
	})
}

// UserID is sent as "userId" query parameter so the server can announce presence
func UserID(id string) Option {
	return optionFunc(func(c *config) {
		c.userID = id
	})
}

// Header adds header sent with the handshake request
func Header(key, value string) Option {
	return optionFunc(func(c *config) {
		c.header.Add(key, value)
	})
}

// PongWait sets how long connection may stay silent before it is considered dead
func PongWait(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.pongWait = d
	})
}

// Reconnect enables redialing with exponential backoff between min and max
func Reconnect(enabled bool, min, max time.Duration) Option {
	return optionFunc(func(c *config) {
		c.reconnect = enabled
		c.reconnectMin = min
		c.reconnectMax = max
	})
}
