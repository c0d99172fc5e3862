// Package medium models the lossy broadcast radio the vehicles share.
//
// The medium delivers a broadcast envelope to every port subscribed to
// its tag except the sender, and a unicast envelope to exactly one port.
// Delivery is best effort: a full backlog drops the envelope silently,
// and nothing stops a relay from duplicating one. Consumers are expected
// to tolerate both rather than compensate.
//
// Two implementations exist: Memory, an in-process bus for the fleet
// simulation and tests, and ZmqBus, a PUB/SUB bridge for running one
// vehicle per process over real sockets.
package medium

import (
	"sync"

	"github.com/fleetsim/gridnet/metrics"
)

// Address identifies a port for the lifetime of its attachment. It is
// assigned by the bus, opaque to callers, and not stable across a
// vehicle restart.
type Address int64

// NoAddress is never assigned to a port.
const NoAddress Address = 0

// Envelope is the (tag, payload, source) triple the medium carries.
// Data is a string for command traffic and a field map for discovery
// traffic.
type Envelope struct {
	Tag    string
	Data   any
	Source Address
}

// Listener is a FIFO backlog of envelopes for one subscription, consumed
// by the owning vehicle's invocation thread.
type Listener interface {
	// Tag returns the channel tag this listener was registered for.
	Tag() string

	// HasPending reports whether at least one envelope is queued.
	HasPending() bool

	// Accept dequeues the oldest pending envelope.
	Accept() (Envelope, bool)
}

// Port is one vehicle's attachment to the medium.
type Port interface {
	// Address returns the bus-assigned address of this port.
	Address() Address

	// Listen registers a broadcast subscription on tag. Calling it twice
	// with the same tag returns the same listener.
	Listen(tag string) Listener

	// Inbox returns the unicast backlog for this port.
	Inbox() Listener

	// Broadcast publishes to every other port listening on tag.
	// Fire-and-forget: there is no acknowledgement.
	Broadcast(tag string, data any)

	// Unicast delivers to a single port's inbox, tagged so the receiver
	// can tell which protocol channel the envelope belongs to.
	Unicast(to Address, tag string, data any)

	// Notify registers a callback invoked after every delivery to this
	// port, so the owner can ask its scheduler for a wakeup.
	Notify(fn func())

	// Close detaches the port. Queued envelopes are discarded.
	Close() error
}

// Bus attaches ports to a shared medium. The name is a diagnostic label
// only; addressing is by the returned port's Address.
type Bus interface {
	Attach(name string) (Port, error)
}

// backlogDepth bounds every per-subscription queue. A vehicle that stops
// draining loses traffic instead of growing without bound.
const backlogDepth = 64

// queue is the shared FIFO backing both bus implementations. The mutex
// is for producers on other invocation threads (or the zmq receiver
// goroutine); the consumer is always the owning vehicle's single thread.
type queue struct {
	mu   sync.Mutex
	tag  string
	q    []Envelope
	wake func()
}

func newQueue(tag string) *queue {
	return &queue{tag: tag}
}

func (l *queue) Tag() string { return l.tag }

func (l *queue) HasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.q) > 0
}

func (l *queue) Accept() (Envelope, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.q) == 0 {
		return Envelope{}, false
	}
	env := l.q[0]
	l.q = l.q[1:]
	metrics.Default.EnvelopesDelivered.Inc()
	return env, true
}

// push appends env, dropping it when the backlog is full.
func (l *queue) push(env Envelope) {
	l.mu.Lock()
	if len(l.q) >= backlogDepth {
		l.mu.Unlock()
		metrics.Default.EnvelopesDropped.Inc()
		return
	}
	l.q = append(l.q, env)
	wake := l.wake
	l.mu.Unlock()
	if wake != nil {
		wake()
	}
}
