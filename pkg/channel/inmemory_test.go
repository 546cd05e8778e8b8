package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceive(t *testing.T) {
	a, b := NewPair()

	require.NoError(t, a.Send(json.RawMessage(`{"n":1}`)))
	msg, err := b.Receive()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(msg))
}

func TestOrderPreserved(t *testing.T) {
	a, b := NewPair()

	for i := 0; i < 100; i++ {
		require.NoError(t, a.Send(json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))))
	}
	for i := 0; i < 100; i++ {
		msg, err := b.Receive()
		require.NoError(t, err)
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(msg))
	}
}

func TestBothDirectionsIndependent(t *testing.T) {
	a, b := NewPair()

	require.NoError(t, a.Send(json.RawMessage(`"from a"`)))
	require.NoError(t, b.Send(json.RawMessage(`"from b"`)))

	fromA, err := b.Receive()
	require.NoError(t, err)
	fromB, err := a.Receive()
	require.NoError(t, err)

	assert.Equal(t, `"from a"`, string(fromA))
	assert.Equal(t, `"from b"`, string(fromB))
}

func TestCloseDrainsBeforeErrClosed(t *testing.T) {
	a, b := NewPair()

	require.NoError(t, a.Send(json.RawMessage(`"queued"`)))
	require.NoError(t, a.Close())

	// Queued traffic is still delivered; closure comes after.
	msg, err := b.Receive()
	require.NoError(t, err)
	assert.Equal(t, `"queued"`, string(msg))

	_, err = b.Receive()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSendAfterPeerClose(t *testing.T) {
	a, b := NewPair()

	require.NoError(t, a.Close())
	_, err := b.Receive()
	require.ErrorIs(t, err, ErrClosed)

	// a closed its outgoing direction, so its own sends now fail too.
	assert.ErrorIs(t, a.Send(json.RawMessage(`"late"`)), ErrClosed)
}

func TestHaltUnblocksReader(t *testing.T) {
	a, _ := NewPair()

	done := make(chan error, 1)
	go func() {
		_, err := a.Receive()
		done <- err
	}()

	// Give the reader a moment to block.
	time.Sleep(10 * time.Millisecond)
	a.Halt()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Halt")
	}
}

func TestCloseIdempotent(t *testing.T) {
	a, b := NewPair()

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	a.Halt()
	a.Halt()

	_, err := b.Receive()
	assert.True(t, errors.Is(err, ErrClosed))
}
