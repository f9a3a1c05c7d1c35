package commandport

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melport/melport/host"
	"github.com/melport/melport/mel"
)

// fakePort is a minimal command port: reads newline-terminated commands,
// replies from a lookup table with newline+NUL framing.
type fakePort struct {
	ln      net.Listener
	mu      sync.Mutex
	replies map[string]string
	cmds    []string
}

func newFakePort(t *testing.T) *fakePort {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fp := &fakePort{ln: ln, replies: map[string]string{}}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go fp.serve(conn)
		}
	}()
	return fp
}

func (fp *fakePort) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSuffix(line, "\n")
		fp.mu.Lock()
		fp.cmds = append(fp.cmds, cmd)
		reply, ok := fp.replies[cmd]
		fp.mu.Unlock()
		if !ok {
			reply = ""
		}
		if _, err := conn.Write([]byte(reply + "\n\x00")); err != nil {
			return
		}
	}
}

func (fp *fakePort) reply(cmd, reply string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.replies[cmd] = reply
}

func (fp *fakePort) addr() string {
	return fp.ln.Addr().String()
}

func dialTest(t *testing.T, fp *fakePort, opts ...Option) *Client {
	t.Helper()
	c, err := Dial(fp.addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDial(t *testing.T) {
	t.Parallel()

	t.Run("empty address", func(t *testing.T) {
		t.Parallel()
		_, err := Dial("")
		assert.ErrorIs(t, err, ErrAddrEmpty)
	})

	t.Run("unreachable address", func(t *testing.T) {
		t.Parallel()
		_, err := Dial("127.0.0.1:1", WithDialTimeout(200*time.Millisecond))
		require.Error(t, err)
	})

	t.Run("bad option", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		_, err := Dial(fp.addr(), WithIOTimeout(-1))
		require.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("string reply", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		fp.reply(`interToUI("fooBar")`, "Foo Bar")
		c := dialTest(t, fp)

		res, err := c.Run(t.Context(), `interToUI("fooBar")`)
		require.NoError(t, err)
		got, err := res.Str()
		require.NoError(t, err)
		assert.Equal(t, "Foo Bar", got)
	})

	t.Run("tab-separated reply decodes as string array", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		fp.reply("ls", "persp\ttop\tfront")
		c := dialTest(t, fp)

		res, err := c.Run(t.Context(), "ls")
		require.NoError(t, err)
		got, err := res.Strings()
		require.NoError(t, err)
		assert.Equal(t, []string{"persp", "top", "front"}, got)
	})

	t.Run("empty reply is none", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		c := dialTest(t, fp)

		res, err := c.Run(t.Context(), "select -cl")
		require.NoError(t, err)
		assert.True(t, res.IsNil())
	})
}

func TestRunTyped(t *testing.T) {
	t.Parallel()

	t.Run("declared kinds decode", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		fp.reply("1+1", "2")
		fp.reply("getAttr persp.translate", "28 21 28")
		fp.reply("env", "$gA\t$gB")
		c := dialTest(t, fp)

		res, err := c.RunTyped(t.Context(), "1+1", mel.KindInt)
		require.NoError(t, err)
		v, err := res.Int()
		require.NoError(t, err)
		assert.Equal(t, 2, v)

		res, err = c.RunTyped(t.Context(), "getAttr persp.translate", mel.KindVector)
		require.NoError(t, err)
		vec, err := res.Vector()
		require.NoError(t, err)
		assert.Equal(t, mel.Vector{X: 28, Y: 21, Z: 28}, vec)

		res, err = c.RunTyped(t.Context(), "env", mel.KindStringArray)
		require.NoError(t, err)
		names, err := res.Strings()
		require.NoError(t, err)
		assert.Equal(t, []string{"$gA", "$gB"}, names)
	})

	t.Run("undecodable reply errors", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		fp.reply("badInt", "not-a-number")
		c := dialTest(t, fp)

		_, err := c.RunTyped(t.Context(), "badInt", mel.KindInt)
		require.Error(t, err)
	})
}

func TestErrorReplies(t *testing.T) {
	t.Parallel()

	fp := newFakePort(t)
	fp.reply("noSuchProc()", `// Error: Cannot find procedure "noSuchProc". //`)
	c := dialTest(t, fp)

	var msgs []host.Message
	id, err := c.AddMessageCallback(func(m host.Message) {
		msgs = append(msgs, m)
	})
	require.NoError(t, err)
	defer func() { _ = c.RemoveMessageCallback(id) }()

	_, err = c.Run(t.Context(), "noSuchProc()")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)

	require.Len(t, msgs, 1)
	assert.Equal(t, host.MessageError, msgs[0].Kind)
	assert.Equal(t, `Cannot find procedure "noSuchProc".`, msgs[0].Text)
}

func TestPing(t *testing.T) {
	t.Parallel()

	t.Run("healthy port", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		fp.reply("1+1", "2")
		c := dialTest(t, fp)

		require.NoError(t, c.Ping(t.Context()))
	})

	t.Run("wrong answer", func(t *testing.T) {
		t.Parallel()
		fp := newFakePort(t)
		fp.reply("1+1", "3")
		c := dialTest(t, fp)

		assert.ErrorIs(t, c.Ping(t.Context()), ErrPingFailed)
	})
}

func TestEchoChannel(t *testing.T) {
	t.Parallel()

	echoLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = echoLn.Close() })

	lines := []string{
		`// Error: line 2: Cannot convert data. //`,
		`// Warning: something minor //`,
		`plain output`,
	}
	go func() {
		conn, err := echoLn.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for _, l := range lines {
			_, _ = conn.Write([]byte(l + "\n"))
		}
	}()

	fp := newFakePort(t)
	c := dialTest(t, fp, WithEchoAddress(echoLn.Addr().String()))

	var mu sync.Mutex
	var got []host.Message
	id, err := c.AddMessageCallback(func(m host.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer func() { _ = c.RemoveMessageCallback(id) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, host.MessageError, got[0].Kind)
	assert.Equal(t, "line 2: Cannot convert data.", got[0].Text)
	assert.Equal(t, host.MessageWarning, got[1].Kind)
	assert.Equal(t, "something minor", got[1].Text)
	assert.Equal(t, host.MessageInfo, got[2].Kind)
	assert.Equal(t, "plain output", got[2].Text)
}

func TestClose(t *testing.T) {
	t.Parallel()

	fp := newFakePort(t)
	c, err := Dial(fp.addr())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close must be idempotent")

	_, err = c.Run(t.Context(), "anything")
	assert.ErrorIs(t, err, ErrClosed)
}
