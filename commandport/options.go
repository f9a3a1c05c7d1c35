package commandport

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 30 * time.Second
)

type config struct {
	dialTimeout time.Duration
	ioTimeout   time.Duration
	echoAddr    string
	logHandler  slog.Handler
}

// Option is a configuration option for Dial.
type Option func(*config) error

func defaultConfig() *config {
	return &config{
		dialTimeout: defaultDialTimeout,
		ioTimeout:   defaultIOTimeout,
	}
}

// WithDialTimeout sets the TCP connect timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("dial timeout must be positive, got %s", d)
		}
		c.dialTimeout = d
		return nil
	}
}

// WithIOTimeout sets the per-request read/write deadline. A context with an
// earlier deadline still wins.
func WithIOTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d <= 0 {
			return fmt.Errorf("io timeout must be positive, got %s", d)
		}
		c.ioTimeout = d
		return nil
	}
}

// WithEchoAddress sets the address of a second command port opened with
// echo output enabled. A background reader forwards every line from it to
// the registered message callbacks.
func WithEchoAddress(addr string) Option {
	return func(c *config) error {
		c.echoAddr = addr
		return nil
	}
}

// WithLogHandler sets the slog handler for the client.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}
