package transport

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"net"
	"testing"
	"time"

	"github.com/mnohosten/collage2pc/pkg/wire"
)

func TestTCPNetworkSendListenRoundTrip(t *testing.T) {
	n, err := NewTCPNetwork()
	if err != nil {
		t.Fatalf("NewTCPNetwork: %v", err)
	}
	defer n.Close()

	received := make(chan wire.Envelope, 1)
	closer, err := n.Listen("127.0.0.1:0", func(env wire.Envelope) { received <- env })
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer closer.Close()

	addr := closer.(net.Listener).Addr().String()

	want := wire.Envelope{
		Type:     wire.CommitQuery,
		CommitID: "composite.jpg",
		Sender:   "coordinator",
		Image:    bytes.Repeat([]byte{0x42}, 4096),
		Files:    []string{"a.jpg", "b.jpg"},
	}
	if err := n.Send(addr, want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got.CommitID != want.CommitID || !bytes.Equal(got.Image, want.Image) {
			t.Fatalf("round trip mismatch: got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestTCPNetworkSendAfterCloseFails(t *testing.T) {
	n, err := NewTCPNetwork()
	if err != nil {
		t.Fatalf("NewTCPNetwork: %v", err)
	}
	n.Close()

	if err := n.Send("127.0.0.1:1", wire.Envelope{}); err != ErrClosed {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
	if _, err := n.Listen("127.0.0.1:0", func(wire.Envelope) {}); err != ErrClosed {
		t.Fatalf("Listen after Close = %v, want ErrClosed", err)
	}
}

func TestTCPNetworkReadFrameShortFrame(t *testing.T) {
	n, err := NewTCPNetwork()
	if err != nil {
		t.Fatalf("NewTCPNetwork: %v", err)
	}
	defer n.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		conn.Write([]byte{0x01, 0x00}) // half a length prefix, then close
		conn.Close()
	}()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	_, err = n.readFrame(conn)
	if err != ErrShortFrame {
		t.Fatalf("readFrame error = %v, want ErrShortFrame", err)
	}
}

func TestTCPNetworkReadFrameWellFormed(t *testing.T) {
	n, err := NewTCPNetwork()
	if err != nil {
		t.Fatalf("NewTCPNetwork: %v", err)
	}
	defer n.Close()

	var buf bytes.Buffer
	env := wire.Envelope{CommitID: "c.jpg", Image: []byte("original")}
	if err := n.writeFrame(&buf, env); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	got, err := n.readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if got.CommitID != env.CommitID || !bytes.Equal(got.Image, env.Image) {
		t.Fatalf("got %+v, want %+v", got, env)
	}
}

func TestTCPNetworkReadFrameChecksumMismatchRejected(t *testing.T) {
	n, err := NewTCPNetwork()
	if err != nil {
		t.Fatalf("NewTCPNetwork: %v", err)
	}
	defer n.Close()

	// Build a frame whose Checksum field does not match its Image:
	// gob-encode directly rather than through wire.Encode, which would
	// recompute (and so repair) the checksum from the image bytes.
	raw := gobEncodeEnvelope(t, wire.Envelope{
		CommitID: "c.jpg",
		Image:    []byte("tampered"),
		Checksum: wire.Checksum([]byte("original")),
	})

	var buf bytes.Buffer
	compressed := n.compress(raw)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	buf.Write(lenBuf[:])
	buf.Write(compressed)

	if _, err := n.readFrame(&buf); err == nil {
		t.Fatal("expected readFrame to reject a checksum mismatch")
	}
}

func gobEncodeEnvelope(t *testing.T, env wire.Envelope) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		t.Fatalf("gob encode: %v", err)
	}
	return buf.Bytes()
}
