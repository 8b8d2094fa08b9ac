package api

import (
	"net/http"
	"time"
)

// Option alters the default configuration used during new Client construction
type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	baseURL      string
	timeout      time.Duration
	cookieName   string
	sessionToken string
	transport    http.RoundTripper
}

func defaultConfig() config {
	return config{
		baseURL:    "http://localhost:8000",
		timeout:    10 * time.Second,
		cookieName: "token",
	}
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	BaseURL      string        `env:"CHAT_SERVER_URL" envDefault:"http://localhost:8000"`
	Timeout      time.Duration `env:"CHAT_REQUEST_TIMEOUT" envDefault:"10s"`
	CookieName   string        `env:"CHAT_SESSION_COOKIE" envDefault:"token"`
	SessionToken string        `env:"CHAT_SESSION_TOKEN"`
}

// WithEnvConfig uses EnvConfig as a source of Client parameters
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.baseURL = cfg.BaseURL
		c.timeout = cfg.Timeout
		c.cookieName = cfg.CookieName
		c.sessionToken = cfg.SessionToken
	})
}

// BaseURL sets chat server address, e.g. http://localhost:8000
func BaseURL(u string) Option {
	return optionFunc(func(c *config) {
		c.baseURL = u
	})
}

// Timeout sets overall timeout of a single request
func Timeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.timeout = d
	})
}

// Session sets session cookie sent with every request
func Session(cookieName, token string) Option {
	return optionFunc(func(c *config) {
		c.cookieName = cookieName
		c.sessionToken = token
	})
}

// Transport replaces http.DefaultTransport
func Transport(rt http.RoundTripper) Option {
	return optionFunc(func(c *config) {
		c.transport = rt
	})
}
