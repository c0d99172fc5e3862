package medium

import (
	"fmt"
	"sync"

	"github.com/fleetsim/gridnet/metrics"
)

// Memory is an in-process bus for the fleet simulation and tests. The
// endpoint registry is owned by the bus instance, so independent
// simulations never share state.
type Memory struct {
	mu       sync.RWMutex
	nextAddr Address
	ports    map[Address]*memPort
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{
		nextAddr: 1,
		ports:    make(map[Address]*memPort),
	}
}

// Attach registers a new port and assigns it the next address.
func (b *Memory) Attach(name string) (Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := b.nextAddr
	b.nextAddr++

	p := &memPort{
		bus:       b,
		name:      name,
		addr:      addr,
		listeners: make(map[string]*queue),
		inbox:     newQueue(""),
	}
	p.inbox.wake = p.wakeOwner
	b.ports[addr] = p
	return p, nil
}

// deliver fans env out to every subscribed port except its source.
func (b *Memory) deliver(env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for addr, p := range b.ports {
		if addr == env.Source {
			continue
		}
		p.mu.Lock()
		l := p.listeners[env.Tag]
		p.mu.Unlock()
		if l != nil {
			l.push(env)
		}
	}
}

func (b *Memory) detach(addr Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.ports, addr)
}

type memPort struct {
	bus  *Memory
	name string
	addr Address

	mu        sync.Mutex
	listeners map[string]*queue
	inbox     *queue
	notify    func()
}

func (p *memPort) Address() Address { return p.addr }

func (p *memPort) Listen(tag string) Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.listeners[tag]; ok {
		return l
	}
	l := newQueue(tag)
	l.wake = p.wakeOwner
	p.listeners[tag] = l
	return l
}

func (p *memPort) Notify(fn func()) {
	p.mu.Lock()
	p.notify = fn
	p.mu.Unlock()
}

func (p *memPort) wakeOwner() {
	p.mu.Lock()
	fn := p.notify
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *memPort) Inbox() Listener { return p.inbox }

func (p *memPort) Broadcast(tag string, data any) {
	metrics.Default.EnvelopesBroadcast.Inc()
	p.bus.deliver(Envelope{Tag: tag, Data: data, Source: p.addr})
}

func (p *memPort) Unicast(to Address, tag string, data any) {
	metrics.Default.EnvelopesUnicast.Inc()

	p.bus.mu.RLock()
	dst := p.bus.ports[to]
	p.bus.mu.RUnlock()
	if dst == nil {
		// Recipient gone: the medium just loses the envelope.
		return
	}
	dst.inbox.push(Envelope{Tag: tag, Data: data, Source: p.addr})
}

func (p *memPort) Close() error {
	p.bus.detach(p.addr)
	return nil
}

func (p *memPort) String() string {
	return fmt.Sprintf("memport(%s@%d)", p.name, p.addr)
}
