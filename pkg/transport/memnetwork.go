package transport

import (
	"fmt"
	"io"
	"sync"

	"github.com/mnohosten/collage2pc/pkg/wire"
)

// MemNetwork is an in-process Network fake: Send looks the destination
// address up in a routing table and invokes its handler directly, with no
// socket, compression, or serialization involved. It exists for tests that
// want deterministic, fast delivery (and optional fault injection) instead
// of real sockets, the same role MockParticipant plays for the teacher's
// in-process 2PC tests.
type MemNetwork struct {
	mu     sync.Mutex
	routes map[string]func(wire.Envelope)
	drop   map[string]bool // addresses whose Send fails with an unreachable error
}

// NewMemNetwork returns an empty fake network.
func NewMemNetwork() *MemNetwork {
	return &MemNetwork{
		routes: make(map[string]func(wire.Envelope)),
		drop:   make(map[string]bool),
	}
}

// SetUnreachable makes every Send to addr fail with an error without
// delivering the message, for injecting
// scenario 4's "participant unreachable in Phase I".
func (m *MemNetwork) SetUnreachable(addr string, unreachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if unreachable {
		m.drop[addr] = true
	} else {
		delete(m.drop, addr)
	}
}

// Send delivers env to addr's registered handler on a new goroutine, mimicking the
// asynchronous delivery a real socket would have.
func (m *MemNetwork) Send(addr string, env wire.Envelope) error {
	m.mu.Lock()
	if m.drop[addr] {
		m.mu.Unlock()
		return fmt.Errorf("transport: %s unreachable", addr)
	}
	handle, ok := m.routes[addr]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no route to %s", addr)
	}
	go handle(env)
	return nil
}

// Listen registers handle under addr. The returned closer unregisters it.
func (m *MemNetwork) Listen(addr string, handle func(wire.Envelope)) (io.Closer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.routes[addr]; exists {
		return nil, fmt.Errorf("transport: %s already bound", addr)
	}
	m.routes[addr] = handle
	return memCloser{net: m, addr: addr}, nil
}

type memCloser struct {
	net  *MemNetwork
	addr string
}

func (c memCloser) Close() error {
	c.net.mu.Lock()
	defer c.net.mu.Unlock()
	delete(c.net.routes, c.addr)
	return nil
}
