// Package commandport implements the host boundary over the host
// application's command port: a TCP socket that accepts command text and
// returns NUL-terminated text replies. A second port opened with echo
// output enabled can stream script-editor output; when configured, its
// lines are forwarded to registered message callbacks.
package commandport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/melport/melport/host"
	"github.com/melport/melport/internal/helpers"
	"github.com/melport/melport/mel"
)

// Client is a host.Host over a live command port. Requests are serialized;
// the port executes one command at a time.
type Client struct {
	addr string
	cfg  *config
	hub  *host.CallbackHub

	reqMu sync.Mutex
	conn  net.Conn
	br    *bufio.Reader

	echoConn   net.Conn
	echoCancel context.CancelFunc
	eg         *errgroup.Group

	closeOnce sync.Once
	closeErr  error
	closed    bool
	closedMu  sync.Mutex

	logHandler slog.Handler
	logger     *slog.Logger
}

// Dial connects to a command port.
func Dial(addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, ErrAddrEmpty
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying command port option: %w", err)
		}
	}

	handler, logger := helpers.SetupLogger(cfg.logHandler, "commandport", "")

	conn, err := net.DialTimeout("tcp", addr, cfg.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing command port %s: %w", addr, err)
	}

	c := &Client{
		addr:       addr,
		cfg:        cfg,
		hub:        host.NewCallbackHub(),
		conn:       conn,
		br:         bufio.NewReader(conn),
		logHandler: handler,
		logger:     logger,
	}

	if cfg.echoAddr != "" {
		if err := c.startEchoReader(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return c, nil
}

// startEchoReader connects the echo port and forwards its lines to the
// callback hub until the client closes.
func (c *Client) startEchoReader() error {
	echoConn, err := net.DialTimeout("tcp", c.cfg.echoAddr, c.cfg.dialTimeout)
	if err != nil {
		return fmt.Errorf("dialing echo port %s: %w", c.cfg.echoAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	c.echoConn = echoConn
	c.echoCancel = cancel
	c.eg = eg

	eg.Go(func() error {
		defer cancel()
		logger := c.logger.WithGroup("echo")
		scanner := bufio.NewScanner(echoConn)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return nil
			}
			line := strings.TrimRight(scanner.Text(), "\x00\r")
			if line == "" {
				continue
			}
			msg := parseOutputLine(line)
			logger.Debug("echo line", "kind", msg.Kind, "text", msg.Text)
			c.hub.Publish(msg)
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
			logger.Warn("echo reader stopped", "error", err)
		}
		return nil
	})
	return nil
}

// parseOutputLine classifies one line of script-editor output by its
// comment prefix. The text keeps the host's message verbatim, prefix
// stripped.
func parseOutputLine(line string) host.Message {
	for prefix, kind := range map[string]host.MessageKind{
		"// Error: ":   host.MessageError,
		"// Warning: ": host.MessageWarning,
	} {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			rest = strings.TrimSuffix(rest, " //")
			return host.Message{Text: rest, Kind: kind}
		}
	}
	return host.Message{Text: line, Kind: host.MessageInfo}
}

// Run executes a command. The port carries text only, so untyped replies
// degrade to the string categories: a tab-separated reply decodes as
// string[], anything else as string, an empty reply as none.
func (c *Client) Run(ctx context.Context, cmd string) (*mel.Result, error) {
	reply, err := c.roundTrip(ctx, cmd)
	if err != nil {
		return nil, err
	}
	switch {
	case reply == "":
		return mel.NilResult(), nil
	case strings.Contains(reply, "\t"):
		return mel.DecodeResult(mel.KindStringArray, reply)
	default:
		return mel.DecodeResult(mel.KindString, reply)
	}
}

// RunTyped executes a command and decodes the reply into the declared
// result category.
func (c *Client) RunTyped(ctx context.Context, cmd string, kind mel.Kind) (*mel.Result, error) {
	reply, err := c.roundTrip(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if kind == mel.KindNone {
		return mel.NilResult(), nil
	}
	res, err := mel.DecodeResult(kind, reply)
	if err != nil {
		return nil, fmt.Errorf("decoding reply of %q: %w", cmd, err)
	}
	return res, nil
}

// roundTrip writes one command and reads its NUL-framed reply. Host error
// text in the reply body is published to message callbacks and reported as
// ErrCommandFailed.
func (c *Client) roundTrip(ctx context.Context, cmd string) (string, error) {
	logger := c.logger.WithGroup("roundTrip")

	c.closedMu.Lock()
	closed := c.closed
	c.closedMu.Unlock()
	if closed {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if err := c.conn.SetDeadline(c.deadline(ctx)); err != nil {
		return "", fmt.Errorf("setting request deadline: %w", err)
	}

	if _, err := io.WriteString(c.conn, cmd+"\n"); err != nil {
		return "", fmt.Errorf("writing command: %w", err)
	}

	reply, err := c.br.ReadString('\x00')
	if err != nil {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	reply = strings.TrimSuffix(reply, "\x00")
	reply = strings.TrimSuffix(reply, "\n")
	logger.DebugContext(ctx, "reply received", "cmd", cmd, "bytes", len(reply))

	if failed := c.publishErrorLines(reply); failed {
		return "", fmt.Errorf("%w: %s", ErrCommandFailed, cmd)
	}
	return reply, nil
}

// publishErrorLines scans a reply body for host diagnostic lines and
// forwards them to the callbacks. It reports whether any error line was
// present, which marks the whole command as failed.
func (c *Client) publishErrorLines(reply string) bool {
	if !strings.Contains(reply, "// Error") && !strings.Contains(reply, "// Warning") {
		return false
	}
	failed := false
	for line := range strings.Lines(reply) {
		line = strings.TrimRight(line, "\n\r")
		if line == "" {
			continue
		}
		msg := parseOutputLine(line)
		if msg.Kind == host.MessageInfo {
			continue
		}
		if msg.Kind == host.MessageError {
			failed = true
		}
		c.hub.Publish(msg)
	}
	return failed
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.cfg.ioTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		d = dl
	}
	return d
}

// Ping round-trips a trivial expression to verify the port is live and
// actually evaluating.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.RunTyped(ctx, "1+1", mel.KindInt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPingFailed, err)
	}
	v, err := res.Int()
	if err != nil || v != 2 {
		return fmt.Errorf("%w: unexpected reply %q", ErrPingFailed, res.String())
	}
	return nil
}

// Addr returns the command port address this client dialed.
func (c *Client) Addr() string {
	return c.addr
}

// AddMessageCallback implements host.MessageSource.
func (c *Client) AddMessageCallback(fn func(host.Message)) (host.CallbackID, error) {
	return c.hub.AddMessageCallback(fn)
}

// RemoveMessageCallback implements host.MessageSource.
func (c *Client) RemoveMessageCallback(id host.CallbackID) error {
	return c.hub.RemoveMessageCallback(id)
}

// Close shuts down the echo reader and both connections. Safe to call
// more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		var errs []error
		if c.echoCancel != nil {
			c.echoCancel()
		}
		if c.echoConn != nil {
			if err := c.echoConn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.eg != nil {
			if err := c.eg.Wait(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
