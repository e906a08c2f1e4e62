package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []string {
	var out []string
	for data := range c.send {
		out = append(out, string(data))
	}
	return out
}

func TestClient_ReleaseQueuesFirstAheadOfHeldMessages(t *testing.T) {
	c := NewClient(nil, nil, "exec-1")
	c.Hold()

	require.True(t, c.Send([]byte("progress")))
	require.True(t, c.Send([]byte("completed")))
	assert.Empty(t, c.send)

	c.Release([]byte("snapshot"))
	c.Close()

	assert.Equal(t, []string{"snapshot", "progress", "completed"}, drain(c))
}

func TestClient_CloseWhileHeldWaitsForRelease(t *testing.T) {
	c := NewClient(nil, nil, "exec-1")
	c.Hold()

	require.True(t, c.Send([]byte("completed")))
	c.Close()
	assert.False(t, c.Send([]byte("late")))

	c.Release([]byte("snapshot"))

	assert.Equal(t, []string{"snapshot", "completed"}, drain(c))
	assert.False(t, c.Send([]byte("after close")))
}

func TestClient_SendWithoutHold(t *testing.T) {
	c := NewClient(nil, nil, "exec-1")

	require.True(t, c.Send([]byte("a")))
	c.Close()
	c.Close()

	assert.Equal(t, []string{"a"}, drain(c))
}
