package host

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackHub(t *testing.T) {
	t.Parallel()

	t.Run("publish reaches registered callbacks", func(t *testing.T) {
		t.Parallel()

		hub := NewCallbackHub()
		var got []Message
		id, err := hub.AddMessageCallback(func(m Message) {
			got = append(got, m)
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		hub.Publish(Message{Text: "first", Kind: MessageError})
		hub.Publish(Message{Text: "second", Kind: MessageWarning})

		require.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Text)
		assert.Equal(t, MessageError, got[0].Kind)
		assert.Equal(t, MessageWarning, got[1].Kind)
	})

	t.Run("removed callbacks stop receiving", func(t *testing.T) {
		t.Parallel()

		hub := NewCallbackHub()
		var count int
		id, err := hub.AddMessageCallback(func(Message) { count++ })
		require.NoError(t, err)

		hub.Publish(Message{Text: "one"})
		require.NoError(t, hub.RemoveMessageCallback(id))
		hub.Publish(Message{Text: "two"})

		assert.Equal(t, 1, count)
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("remove unknown ID errors", func(t *testing.T) {
		t.Parallel()

		hub := NewCallbackHub()
		err := hub.RemoveMessageCallback("no-such-id")
		assert.ErrorIs(t, err, ErrUnknownCallback)
	})

	t.Run("nil callback rejected", func(t *testing.T) {
		t.Parallel()

		hub := NewCallbackHub()
		_, err := hub.AddMessageCallback(nil)
		assert.Error(t, err)
	})

	t.Run("IDs are unique", func(t *testing.T) {
		t.Parallel()

		hub := NewCallbackHub()
		seen := make(map[CallbackID]bool)
		for range 100 {
			id, err := hub.AddMessageCallback(func(Message) {})
			require.NoError(t, err)
			assert.False(t, seen[id], "duplicate callback ID %s", id)
			seen[id] = true
		}
	})

	t.Run("concurrent registration and publish", func(t *testing.T) {
		t.Parallel()

		hub := NewCallbackHub()
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				id, err := hub.AddMessageCallback(func(Message) {})
				assert.NoError(t, err)
				assert.NoError(t, hub.RemoveMessageCallback(id))
			}()
			go func() {
				defer wg.Done()
				hub.Publish(Message{Text: "x"})
			}()
		}
		wg.Wait()
	})
}

func TestMessageKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "info", MessageInfo.String())
	assert.Equal(t, "warning", MessageWarning.String())
	assert.Equal(t, "error", MessageError.String())
	assert.Equal(t, "unknown", MessageKind(99).String())
}
