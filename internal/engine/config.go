package engine

import (
	"github.com/benbjohnson/clock"
	"time"
)

const DefaultDebounceWindow = 500 * time.Millisecond

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Engine instance
type config struct {
	clk    clock.Clock
	window time.Duration
}

func defaultConfig() config {
	return config{
		clk:    clock.New(),
		window: DefaultDebounceWindow,
	}
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Self           string        `env:"CHAT_SELF_ID,required"`
	DebounceWindow time.Duration `env:"CHAT_PRESENCE_DEBOUNCE" envDefault:"500ms"`
}

// WithEnvConfig applies presence settings parsed from environment
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		if cfg.DebounceWindow > 0 {
			c.window = cfg.DebounceWindow
		}
	})
}

// DebounceWindow sets quiet period for presence snapshots
func DebounceWindow(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.window = d
	})
}

// WithClock replaces wall clock used for scheduling presence updates
func WithClock(clk clock.Clock) Option {
	return optionFunc(func(c *config) {
		c.clk = clk
	})
}
