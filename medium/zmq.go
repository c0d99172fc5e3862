package medium

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/metrics"
)

// ZmqBus bridges the medium over ZeroMQ PUB/SUB so one vehicle runs per
// process. The local PUB socket is the vehicle's antenna; SUB sockets
// dialed to relay endpoints are its receiver. Channel tags map to zmq
// topics, and unicast rides a per-address topic every bus subscribes to
// for itself.
//
// A ZmqBus carries exactly one port: the process's own vehicle.
type ZmqBus struct {
	bind  string
	peers []string

	ctx    context.Context
	cancel context.CancelFunc

	attached bool
	port     *zmqPort
}

// NewZmq creates a bridge that binds its PUB socket on bind and dials
// SUB connections to each peer endpoint.
func NewZmq(bind string, peers []string) *ZmqBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZmqBus{
		bind:   bind,
		peers:  peers,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Attach binds the sockets and starts the receive loop. A ZmqBus
// supports a single attachment.
func (b *ZmqBus) Attach(name string) (Port, error) {
	if b.attached {
		return nil, fmt.Errorf("zmq bus: already attached")
	}

	// The bus assigns the session address; a restarted vehicle comes
	// back under a fresh one.
	addr := Address(rand.Int63n(1<<62) + 1)

	pub := zmq4.NewPub(b.ctx)
	if err := pub.Listen(b.bind); err != nil {
		return nil, fmt.Errorf("zmq bus: bind %s: %w", b.bind, err)
	}

	sub := zmq4.NewSub(b.ctx)
	for _, peer := range b.peers {
		if err := sub.Dial(peer); err != nil {
			pub.Close()
			return nil, fmt.Errorf("zmq bus: dial %s: %w", peer, err)
		}
	}

	p := &zmqPort{
		bus:       b,
		name:      name,
		addr:      addr,
		pub:       pub,
		sub:       sub,
		listeners: make(map[string]*queue),
		inbox:     newQueue(""),
	}
	p.inbox.wake = p.wakeOwner

	// Unicast inbox topic.
	if err := sub.SetOption(zmq4.OptionSubscribe, addrTopic(addr)); err != nil {
		pub.Close()
		sub.Close()
		return nil, fmt.Errorf("zmq bus: subscribe inbox: %w", err)
	}

	b.attached = true
	b.port = p
	go p.recvLoop(b.ctx)
	return p, nil
}

// Close shuts the bridge down.
func (b *ZmqBus) Close() error {
	b.cancel()
	if b.port != nil {
		b.port.pub.Close()
		b.port.sub.Close()
	}
	return nil
}

func addrTopic(a Address) string {
	return fmt.Sprintf("ADDR:%d", a)
}

// wireEnvelope is the JSON frame body. Data survives the round trip as
// a string or a string-keyed field map, which is all the medium carries.
type wireEnvelope struct {
	Tag    string `json:"tag"`
	Source int64  `json:"src"`
	Data   any    `json:"data"`
}

type zmqPort struct {
	bus  *ZmqBus
	name string
	addr Address
	pub  zmq4.Socket
	sub  zmq4.Socket

	mu        sync.Mutex
	listeners map[string]*queue
	inbox     *queue
	notify    func()
}

func (p *zmqPort) Address() Address { return p.addr }

func (p *zmqPort) Listen(tag string) Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.listeners[tag]; ok {
		return l
	}
	if err := p.sub.SetOption(zmq4.OptionSubscribe, tag); err != nil {
		logger.Errorf("[%s] zmq subscribe %q: %v", p.name, tag, err)
	}
	l := newQueue(tag)
	l.wake = p.wakeOwner
	p.listeners[tag] = l
	return l
}

func (p *zmqPort) Notify(fn func()) {
	p.mu.Lock()
	p.notify = fn
	p.mu.Unlock()
}

func (p *zmqPort) wakeOwner() {
	p.mu.Lock()
	fn := p.notify
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *zmqPort) Inbox() Listener { return p.inbox }

func (p *zmqPort) Broadcast(tag string, data any) {
	metrics.Default.EnvelopesBroadcast.Inc()
	p.publish(tag, tag, data)
}

func (p *zmqPort) Unicast(to Address, tag string, data any) {
	metrics.Default.EnvelopesUnicast.Inc()
	p.publish(addrTopic(to), tag, data)
}

func (p *zmqPort) publish(topic, tag string, data any) {
	body, err := json.Marshal(wireEnvelope{
		Tag:    tag,
		Source: int64(p.addr),
		Data:   data,
	})
	if err != nil {
		logger.Errorf("[%s] zmq encode %q: %v", p.name, tag, err)
		return
	}
	// Fire-and-forget; a send error is just the medium being a medium.
	if err := p.pub.Send(zmq4.NewMsgFrom([]byte(topic), body)); err != nil {
		logger.Errorf("[%s] zmq send %q: %v", p.name, tag, err)
	}
}

func (p *zmqPort) Close() error {
	return p.bus.Close()
}

func (p *zmqPort) recvLoop(ctx context.Context) {
	for {
		msg, err := p.sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("[%s] zmq recv: %v", p.name, err)
			continue
		}
		if len(msg.Frames) < 2 {
			continue
		}

		var wire wireEnvelope
		if err := json.Unmarshal(msg.Frames[1], &wire); err != nil {
			logger.Errorf("[%s] zmq decode: %v", p.name, err)
			continue
		}
		src := Address(wire.Source)
		if src == p.addr {
			// A relay echoed our own broadcast; the medium boundary says
			// a sender never hears itself.
			continue
		}

		env := Envelope{Tag: wire.Tag, Data: wire.Data, Source: src}
		topic := string(msg.Frames[0])
		if topic == addrTopic(p.addr) {
			p.inbox.push(env)
			continue
		}
		p.mu.Lock()
		l := p.listeners[wire.Tag]
		p.mu.Unlock()
		if l != nil {
			l.push(env)
		}
	}
}
