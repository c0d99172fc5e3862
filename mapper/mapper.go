package mapper

import (
	"time"

	"github.com/fleetsim/gridnet/drain"
	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/medium"
	"github.com/fleetsim/gridnet/metrics"
)

// StatusSource samples the vehicle's own kinematics for an announce.
type StatusSource interface {
	Sample() (pos, vel Vector3, broadcastRange float64)
}

// StatusSourceFunc adapts a function to the StatusSource interface.
type StatusSourceFunc func() (Vector3, Vector3, float64)

func (f StatusSourceFunc) Sample() (Vector3, Vector3, float64) { return f() }

// Mapper maintains the peer map for one vehicle. All methods run on the
// vehicle's single invocation thread; the map is owned exclusively by
// the mapper and mutated nowhere else.
type Mapper struct {
	name            string
	port            medium.Port
	source          StatusSource
	statusInterval  time.Duration
	staleMultiplier int

	peers map[medium.Address]*PeerRecord

	initDrain   *drain.Drain
	statusDrain *drain.Drain
	inboxDrain  *drain.Drain

	lastAnnounceMs int64

	// nowMs is wall-clock milliseconds; tests substitute a fake.
	nowMs func() int64
}

// New subscribes the discovery channels on port and returns an engine
// with an empty peer map. The port is shared with the modem: broadcast
// subscriptions here cover only the discovery tags, never NET: command
// tags, and the bus never loops a vehicle's own broadcast back to it,
// which is what keeps a vehicle out of its own peer map.
func New(name string, port medium.Port, source StatusSource, statusInterval time.Duration, staleMultiplier int) *Mapper {
	m := &Mapper{
		name:            name,
		port:            port,
		source:          source,
		statusInterval:  statusInterval,
		staleMultiplier: staleMultiplier,
		peers:           make(map[medium.Address]*PeerRecord),
		nowMs:           func() int64 { return time.Now().UnixMilli() },
	}

	initListener := port.Listen(TagInit)
	statusListener := port.Listen(TagStatus)
	inbox := port.Inbox()

	// Init channel: fold the newcomer, then answer point-to-point with
	// our own status so it learns the fleet in one round trip.
	m.initDrain = drain.New(initListener, func() {
		env, ok := initListener.Accept()
		if !ok {
			return
		}
		m.fold(env)
		m.port.Unicast(env.Source, TagStatus, encodeStatus(m.selfStatus()))
	})

	// Status channel: fold, no reply.
	m.statusDrain = drain.New(statusListener, func() {
		env, ok := statusListener.Accept()
		if !ok {
			return
		}
		m.fold(env)
	})

	// Unicast inbox: init replies arrive here, tagged STATUS.
	m.inboxDrain = drain.New(inbox, func() {
		env, ok := inbox.Accept()
		if !ok {
			return
		}
		if env.Tag != TagStatus {
			return
		}
		m.fold(env)
	})

	return m
}

// Start performs the startup handshake: one init broadcast carrying our
// own status. Peers that hear it reply by unicast.
func (m *Mapper) Start() {
	metrics.Default.InitBroadcasts.Inc()
	m.port.Broadcast(TagInit, encodeStatus(m.selfStatus()))
	logger.Printf("[%s] init broadcast sent", m.name)
}

// ServiceInbound advances each discovery drain by one bounded step and
// reports whether any channel still has work, in which case the caller
// re-arms a continuation instead of looping.
func (m *Mapper) ServiceInbound() (more bool) {
	for _, d := range []*drain.Drain{m.initDrain, m.statusDrain, m.inboxDrain} {
		if !d.Advance() {
			more = true
		}
	}
	return more
}

// ServicePeriodic runs the staleness sweep and, when one is due, the
// periodic self-announce.
func (m *Mapper) ServicePeriodic() {
	m.sweep()
	now := m.nowMs()
	if now-m.lastAnnounceMs >= m.statusInterval.Milliseconds() {
		m.announce(now)
	}
}

// announce re-samples our kinematics and broadcasts a fresh status.
func (m *Mapper) announce(now int64) {
	m.lastAnnounceMs = now
	metrics.Default.StatusAnnounces.Inc()
	m.port.Broadcast(TagStatus, encodeStatus(m.selfStatus()))
}

// sweep flips records to offline once silent for longer than
// statusInterval times the stale multiplier. Records are never evicted:
// last-known state stays useful after contact is lost.
func (m *Mapper) sweep() {
	metrics.Default.StaleSweeps.Inc()
	cutoff := m.nowMs() - m.statusInterval.Milliseconds()*int64(m.staleMultiplier)
	online := 0
	for _, rec := range m.peers {
		if rec.Online && rec.LastUpdateMs < cutoff {
			rec.Online = false
			logger.Printf("[%s] peer %s (addr %d) went stale", m.name, rec.Name, rec.Address)
		}
		if rec.Online {
			online++
		}
	}
	metrics.Default.PeersKnown.Set(float64(len(m.peers)))
	metrics.Default.PeersOnline.Set(float64(online))
}

// fold merges one received status envelope into the peer map: a new
// address inserts, a known address overwrites in place. Last write
// wins; the sender's timestamp is not checked against the cached one,
// so an out-of-order duplicate can regress a record's apparent
// freshness until the peer's next announce. That matches the deployed
// behavior and the sweep self-heals it.
func (m *Mapper) fold(env medium.Envelope) {
	rec, err := decodeStatus(env.Data)
	if err != nil {
		logger.Printf("[%s] ignoring status from addr %d: %v", m.name, env.Source, err)
		return
	}
	rec.Address = env.Source

	if existing, ok := m.peers[env.Source]; ok {
		*existing = rec
	} else {
		m.peers[env.Source] = &rec
		logger.Printf("[%s] discovered peer %s (addr %d)", m.name, rec.Name, rec.Address)
	}
}

// selfStatus samples a fresh self-description. Address stays zero: the
// receiver fills it from the envelope.
func (m *Mapper) selfStatus() PeerRecord {
	pos, vel, rng := m.source.Sample()
	return PeerRecord{
		Name:         m.name,
		Position:     pos,
		Velocity:     vel,
		Range:        rng,
		Online:       true,
		LastUpdateMs: m.nowMs(),
	}
}

// Snapshot returns a copy of every peer record for display surfaces.
// Must be called on the invocation thread (via the scheduler's Do).
func (m *Mapper) Snapshot() []PeerRecord {
	out := make([]PeerRecord, 0, len(m.peers))
	for _, rec := range m.peers {
		out = append(out, *rec)
	}
	return out
}

// PeerCount returns known and online totals.
func (m *Mapper) PeerCount() (known, online int) {
	for _, rec := range m.peers {
		known++
		if rec.Online {
			online++
		}
	}
	return known, online
}
