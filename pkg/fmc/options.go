package fmc

import (
	"time"

	"github.com/OpenTraceLab/gdflash/pkg/timeout"
	"github.com/sirupsen/logrus"
)

// Protocol timing of the option byte erase and program steps.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Config holds the engine configuration.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Clock        timeout.Clock
	Logger       logrus.FieldLogger
	PartNumber   string
	StateHook    StateHook
}

func defaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		Clock:        timeout.SystemClock{},
		Logger:       logrus.StandardLogger(),
	}
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithTimeout overrides the busy-poll deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.Timeout = d
		}
	}
}

// WithPollInterval overrides the sleep between status reads. Zero is
// allowed and makes the loop spin on the clock alone.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.PollInterval = d
		}
	}
}

// WithClock sets the clock used for deadlines and sleeps.
func WithClock(clock timeout.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithPartNumber sets the part number reported in log messages.
func WithPartNumber(part string) Option {
	return func(c *Config) {
		c.PartNumber = part
	}
}

// WithStateHook registers an observer for MassErase state transitions.
func WithStateHook(hook StateHook) Option {
	return func(c *Config) {
		c.StateHook = hook
	}
}
