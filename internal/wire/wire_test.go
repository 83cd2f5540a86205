package wire

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verayang01/clocksim/internal/event"
	"github.com/verayang01/clocksim/internal/node"
	"github.com/verayang01/clocksim/internal/testutil"
)

func TestCodec_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := event.Message{ID: "m-1", Sender: "a", Clock: 42, Kind: event.PayloadClock}

	require.NoError(t, WriteMessage(&buf, in))
	out, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCodec_MultipleFramesInOrder(t *testing.T) {
	var buf bytes.Buffer
	for i := 1; i <= 3; i++ {
		require.NoError(t, WriteMessage(&buf, event.Message{
			ID: fmt.Sprintf("m-%d", i), Sender: "a", Clock: uint64(i),
		}))
	}
	for i := 1; i <= 3; i++ {
		msg, err := ReadMessage(&buf)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m-%d", i), msg.ID)
	}
}

func TestReadMessage_OversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameSize+1)
	buf.Write(header[:])

	_, err := ReadMessage(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadMessage_Malformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"id":`},
		{"missing sender", `{"id":"m-1","clock":3}`},
		{"missing id", `{"sender":"a","clock":3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			var header [4]byte
			binary.BigEndian.PutUint32(header[:], uint32(len(tc.body)))
			buf.Write(header[:])
			buf.WriteString(tc.body)

			_, err := ReadMessage(&buf)
			require.Error(t, err)
			assert.True(t, IsMalformed(err), "expected malformed frame, got %v", err)
		})
	}
}

func TestListenerAndLink_DeliverInOrder(t *testing.T) {
	mb := node.NewMailbox()
	ln, err := Listen("127.0.0.1:0", map[string]*node.Mailbox{"a": mb}, testutil.Logger())
	require.NoError(t, err)
	defer ln.Close()

	link, err := Dial(context.Background(), ln.Addr(), time.Second)
	require.NoError(t, err)
	defer link.Close()

	const total = 20
	for i := 1; i <= total; i++ {
		require.NoError(t, link.Send(event.Message{
			ID: fmt.Sprintf("m-%d", i), Sender: "a", Clock: uint64(i),
		}))
	}

	got := testutil.Drain(t, mb, total, 2*time.Second)
	for i, msg := range got {
		assert.Equal(t, fmt.Sprintf("m-%d", i+1), msg.ID, "FIFO per link")
	}
}

func TestListener_DropsMalformedAndKeepsReading(t *testing.T) {
	mb := node.NewMailbox()
	ln, err := Listen("127.0.0.1:0", map[string]*node.Mailbox{"a": mb}, testutil.Logger())
	require.NoError(t, err)
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// Valid frame, then a decodable-but-senderless frame, then valid again.
	require.NoError(t, WriteMessage(conn, event.Message{ID: "m-1", Sender: "a", Clock: 1}))
	bad := []byte(`{"id":"m-x","clock":9}`)
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(bad)))
	_, err = conn.Write(append(header[:], bad...))
	require.NoError(t, err)
	require.NoError(t, WriteMessage(conn, event.Message{ID: "m-2", Sender: "a", Clock: 2}))

	got := testutil.Drain(t, mb, 2, 2*time.Second)
	assert.Equal(t, "m-1", got[0].ID)
	assert.Equal(t, "m-2", got[1].ID, "stream must survive a malformed frame")
}

func TestListener_UnknownSenderDropped(t *testing.T) {
	mb := node.NewMailbox()
	ln, err := Listen("127.0.0.1:0", map[string]*node.Mailbox{"a": mb}, testutil.Logger())
	require.NoError(t, err)
	defer ln.Close()

	link, err := Dial(context.Background(), ln.Addr(), time.Second)
	require.NoError(t, err)
	defer link.Close()

	require.NoError(t, link.Send(event.Message{ID: "m-1", Sender: "stranger", Clock: 1}))
	require.NoError(t, link.Send(event.Message{ID: "m-2", Sender: "a", Clock: 2}))

	got := testutil.Drain(t, mb, 1, 2*time.Second)
	assert.Equal(t, "m-2", got[0].ID)
	assert.Equal(t, 0, mb.Len())
}

func TestDial_RetriesUntilPeerAppears(t *testing.T) {
	// Reserve an address, then only start listening after a delay.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	require.NoError(t, probe.Close())

	mb := node.NewMailbox()
	go func() {
		time.Sleep(150 * time.Millisecond)
		ln, lerr := Listen(addr, map[string]*node.Mailbox{"a": mb}, testutil.Logger())
		if lerr == nil {
			t.Cleanup(func() { ln.Close() })
		}
	}()

	link, err := Dial(context.Background(), addr, 3*time.Second)
	require.NoError(t, err, "dial must keep retrying until the peer listens")
	link.Close()
}

func TestDial_DeadlineExceededIsStartupError(t *testing.T) {
	// An address nobody listens on.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	require.NoError(t, probe.Close())

	_, err = Dial(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)

	var se *StartupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, addr, se.Addr)
	assert.Positive(t, se.Attempts)
}
