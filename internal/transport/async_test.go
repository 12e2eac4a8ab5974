package transport

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/orientgo/driver/internal/wire"
)

// newPipeAsyncConnection builds an AsyncConnection over one half of a
// net.Pipe and starts its sender/reader loops, bypassing DialAsync's real
// dial and handshake so the server side can be driven by hand.
func newPipeAsyncConnection(t *testing.T) (*AsyncConnection, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	ac := &AsyncConnection{
		addr:   "pipe",
		conn:   client,
		r:      wire.NewReader(client),
		logger: slog.Default(),
		sendCh: make(chan outboundCmd, commandQueueDepth),
		doneCh: make(chan struct{}),
	}
	ac.wg.Add(2)
	go ac.senderLoop()
	go ac.readerLoop()
	t.Cleanup(func() { ac.Close(); server.Close() })
	return ac, server
}

func writeAsyncOK(t *testing.T, server net.Conn, sessionID int32, op int8) {
	t.Helper()
	w := wire.NewWriter()
	w.WriteI8(int8(wire.StatusOK))
	w.WriteI32(sessionID)
	w.WriteBytes(nil)
	w.WriteI8(op)
	if _, err := server.Write(w.Bytes()); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func decodeNoop(r *wire.Reader, hdr wire.ResponseHeader) (any, error) { return "ok", nil }

func TestAsyncSendRequestRoundTrip(t *testing.T) {
	ac, server := newPipeAsyncConnection(t)

	go func() {
		buf := make([]byte, 4)
		server.Read(buf)
		writeAsyncOK(t, server, 3, 1)
	}()

	val, hdr, err := ac.SendRequest(context.Background(), []byte("ping"), decodeNoop)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if val != "ok" || hdr.SessionID != 3 {
		t.Fatalf("unexpected result: val=%v hdr=%+v", val, hdr)
	}
}

func TestAsyncPushFrameDispatchedOutOfBand(t *testing.T) {
	ac, server := newPipeAsyncConnection(t)

	received := make(chan *wire.PushFrame, 1)
	ac.SetPushHandler(func(pf *wire.PushFrame) { received <- pf })

	go func() {
		w := wire.NewWriter()
		w.WriteI8(int8(wire.StatusPush))
		w.WriteI32(5)    // monitor id
		w.WriteBool(false) // not ended
		w.WriteVarint(0)   // zero events
		server.Write(w.Bytes())
	}()

	select {
	case pf := <-received:
		if pf.MonitorID != 5 {
			t.Fatalf("unexpected monitor id: %d", pf.MonitorID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for push frame dispatch")
	}
}

func TestAsyncRequestErrorDeliveredToCaller(t *testing.T) {
	ac, server := newPipeAsyncConnection(t)

	go func() {
		buf := make([]byte, 4)
		server.Read(buf)

		w := wire.NewWriter()
		w.WriteI8(int8(wire.StatusError))
		w.WriteI32(1)
		w.WriteBytes(nil)
		w.WriteI8(0)
		w.WriteI32(7)
		w.WriteI32(1)
		w.WriteBool(false)
		w.WriteString("SomeException")
		w.WriteString("boom")
		w.WriteBytes(nil)
		server.Write(w.Bytes())
	}()

	_, _, err := ac.SendRequest(context.Background(), []byte("ping"), decodeNoop)
	if err == nil {
		t.Fatal("expected an error for a StatusError response")
	}
}

func TestAsyncConnectionFailsPendingRequestsOnReadError(t *testing.T) {
	ac, server := newPipeAsyncConnection(t)

	resultCh := make(chan error, 1)
	go func() {
		_, _, err := ac.SendRequest(context.Background(), []byte("ping"), decodeNoop)
		resultCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	server.Close() // reader loop's next read fails

	select {
	case err := <-resultCh:
		if err == nil {
			t.Fatal("expected pending request to fail once the connection breaks")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the pending request to be failed out")
	}
	if !ac.Broken() {
		t.Fatal("expected connection to be marked broken")
	}
}

func TestAsyncSendAndForgetDoesNotBlockOnReply(t *testing.T) {
	ac, server := newPipeAsyncConnection(t)

	received := make(chan struct{}, 1)
	go func() {
		buf := make([]byte, 5)
		server.Read(buf)
		received <- struct{}{}
	}()

	if err := ac.SendAndForget(context.Background(), []byte("close")); err != nil {
		t.Fatalf("SendAndForget: %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the frame to be written")
	}
}
