// Package transport provides the point-to-point byte-message delivery the
// spec assumes as an external collaborator (section 6): Send/Listen are
// given a concrete, swappable shape here (durability is not part of this
// package; pkg/walog fsyncs the logs) so
// the coordinator and participant binaries run end to end over a real
// socket, grounded on how pkg/cluster/server wraps net.Listen and how
// pkg/replication.Oplog frames its on-disk records with a 4-byte
// little-endian length prefix (applied here to net.Conn instead of os.File).
package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/mnohosten/collage2pc/pkg/wire"
)

const maxFrameBytes = 256 << 20 // guard against a corrupt/hostile length prefix

// Network is the messaging substrate the coordinator and participant send
// and receive envelopes through. TCPNetwork is the production
// implementation; MemNetwork is an in-process fake used by tests.
type Network interface {
	// Send delivers env to addr. Best-effort: the spec allows the
	// substrate to be lossy, so callers layer their own retry (Phase II
	// resend) on top.
	Send(addr string, env wire.Envelope) error

	// Listen starts accepting envelopes at addr, invoking handle for
	// each one on its own goroutine. The returned io.Closer stops the
	// listener.
	Listen(addr string, handle func(wire.Envelope)) (io.Closer, error)
}

// TCPNetwork frames envelopes over net.Conn: a 4-byte little-endian length
// prefix followed by a zstd-compressed gob payload. Compression targets the
// composite image carried in COMMIT_QUERY, the largest thing ever on this
// wire, the same way laura-db's compression.Config defaults hot documents to
// zstd.
type TCPNetwork struct {
	mu     sync.Mutex
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	closed bool
}

// NewTCPNetwork constructs a TCPNetwork. The returned value owns a
// zstd encoder/decoder pair and must be closed with Close when no longer
// needed.
func NewTCPNetwork() (*TCPNetwork, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("transport: new zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("transport: new zstd decoder: %w", err)
	}
	return &TCPNetwork{enc: enc, dec: dec}, nil
}

// Close releases the zstd encoder/decoder.
func (n *TCPNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.enc.Close()
	n.dec.Close()
	return nil
}

func (n *TCPNetwork) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *TCPNetwork) compress(src []byte) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enc.EncodeAll(src, make([]byte, 0, len(src)))
}

func (n *TCPNetwork) decompress(src []byte) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dec.DecodeAll(src, nil)
}

// Send dials addr, writes one framed envelope, and closes the connection.
// One connection per message keeps the substrate simple and matches its
// "best-effort point-to-point delivery" contract: nothing here promises a
// persistent channel.
func (n *TCPNetwork) Send(addr string, env wire.Envelope) error {
	if n.isClosed() {
		return ErrClosed
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	return n.writeFrame(conn, env)
}

func (n *TCPNetwork) writeFrame(w io.Writer, env wire.Envelope) error {
	payload, err := wire.Encode(env)
	if err != nil {
		return err
	}
	compressed := n.compress(payload)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: write length: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("transport: write payload: %w", err)
	}
	return nil
}

func (n *TCPNetwork) readFrame(r io.Reader) (wire.Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return wire.Envelope{}, ErrShortFrame
		}
		return wire.Envelope{}, fmt.Errorf("transport: read length: %w", err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > maxFrameBytes {
		return wire.Envelope{}, fmt.Errorf("transport: frame too large: %d bytes", length)
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return wire.Envelope{}, fmt.Errorf("transport: read payload: %w", err)
	}

	payload, err := n.decompress(compressed)
	if err != nil {
		return wire.Envelope{}, fmt.Errorf("transport: decompress: %w", err)
	}

	env, err := wire.Decode(payload)
	if err != nil {
		return wire.Envelope{}, err
	}
	if !wire.VerifyChecksum(env.Image, env.Checksum) {
		return env, fmt.Errorf("transport: checksum mismatch for commit %s", env.CommitID)
	}
	return env, nil
}

// Listen accepts connections on addr; each one is expected to carry exactly
// one framed envelope.
func (n *TCPNetwork) Listen(addr string, handle func(wire.Envelope)) (io.Closer, error) {
	if n.isClosed() {
		return nil, ErrClosed
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go n.serveConn(conn, handle)
		}
	}()

	return ln, nil
}

func (n *TCPNetwork) serveConn(conn net.Conn, handle func(wire.Envelope)) {
	defer conn.Close()
	env, err := n.readFrame(conn)
	if err != nil {
		log.Printf("transport: dropping inbound frame from %s: %v", conn.RemoteAddr(), err)
		return
	}
	handle(env)
}
