package node

import (
	"fmt"
	"math"
	"time"

	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/mapper"
	"github.com/fleetsim/gridnet/medium"
	"github.com/fleetsim/gridnet/radio"
	"github.com/fleetsim/gridnet/sched"
)

// Manager runs a simulated fleet: vehicles sharing one in-process bus
// and one scheduler. It backs the interactive TUI.
type Manager struct {
	bus    *medium.Memory
	sched  *sched.Scheduler
	nodes  []*Node // maintain creation order
	nextID int
}

// VehicleView is a display snapshot of one vehicle.
type VehicleView struct {
	Name    string
	Address medium.Address
	Known   int
	Online  int
	Peers   []mapper.PeerRecord
}

// NewManager creates an empty fleet and starts its scheduler.
func NewManager() *Manager {
	m := &Manager{
		bus:    medium.NewMemory(),
		sched:  sched.New(DefaultTickInterval),
		nextID: 1,
	}
	m.sched.Start()
	return m
}

// CreateNode spawns the next vehicle with a logging router and a
// drifting flight path, and runs its startup handshake.
func (m *Manager) CreateNode() (*Node, error) {
	name := fmt.Sprintf("Vehicle-%d", m.nextID)

	blocks := radio.NewBlockRegistry()
	blocks.Add("Command Router", radio.RouterFunc(func(data string) {
		logger.Printf("[%s] command received: %s", name, data)
	}))

	n, err := New(DefaultConfig(name), m.bus, m.sched, blocks, newOrbit(m.nextID))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	m.nextID++

	m.sched.Do(n.Start)
	m.nodes = append(m.nodes, n)
	return n, nil
}

// DeleteNode stops and removes the vehicle at index in creation order.
func (m *Manager) DeleteNode(index int) error {
	if index < 0 || index >= len(m.nodes) {
		return fmt.Errorf("invalid vehicle index: %d", index)
	}
	n := m.nodes[index]
	m.nodes = append(m.nodes[:index], m.nodes[index+1:]...)
	n.Stop()
	return nil
}

// Views snapshots every vehicle's peer map on the invocation thread.
func (m *Manager) Views() []VehicleView {
	views := make([]VehicleView, 0, len(m.nodes))
	m.sched.Do(func() {
		for _, n := range m.nodes {
			known, online := n.Mapper().PeerCount()
			views = append(views, VehicleView{
				Name:    n.Name(),
				Address: n.Address(),
				Known:   known,
				Online:  online,
				Peers:   n.Mapper().Snapshot(),
			})
		}
	})
	return views
}

// Count returns the number of running vehicles.
func (m *Manager) Count() int { return len(m.nodes) }

// Trigger queues a manual grid:// send on the vehicle at index.
func (m *Manager) Trigger(index int, rawURI string) error {
	if index < 0 || index >= len(m.nodes) {
		return fmt.Errorf("invalid vehicle index: %d", index)
	}
	m.nodes[index].Trigger(rawURI)
	return nil
}

// StopAll stops every vehicle and the scheduler.
func (m *Manager) StopAll() {
	for _, n := range m.nodes {
		n.Stop()
	}
	m.nodes = nil
	m.sched.Stop()
}

// orbit is the simulated flight path: a slow circle, one per vehicle,
// so positions and velocities keep changing between announces.
type orbit struct {
	radius float64
	rate   float64
	phase  float64
	start  time.Time
}

func newOrbit(seq int) *orbit {
	return &orbit{
		radius: 200 + 50*float64(seq),
		rate:   2 * math.Pi / 120, // one lap every two minutes
		phase:  float64(seq),
		start:  time.Now(),
	}
}

// Sample implements mapper.StatusSource.
func (o *orbit) Sample() (mapper.Vector3, mapper.Vector3, float64) {
	t := time.Since(o.start).Seconds()
	a := o.phase + o.rate*t
	pos := mapper.Vector3{
		X: o.radius * math.Cos(a),
		Y: o.radius * math.Sin(a),
		Z: 10 * o.phase,
	}
	vel := mapper.Vector3{
		X: -o.radius * o.rate * math.Sin(a),
		Y: o.radius * o.rate * math.Cos(a),
	}
	return pos, vel, 500
}
