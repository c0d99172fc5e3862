// Package node assembles one vehicle: a bus port shared by the modem
// and the discovery engine, the NIC its scripts send through, and a
// single scheduler entry point that dispatches on the invocation
// reason.
package node

import (
	"fmt"

	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/mapper"
	"github.com/fleetsim/gridnet/medium"
	"github.com/fleetsim/gridnet/radio"
	"github.com/fleetsim/gridnet/sched"
	"github.com/fleetsim/gridnet/uri"
)

// Node is one vehicle on the grid.
type Node struct {
	config *Config
	sched  *sched.Scheduler
	task   *sched.Task

	port   medium.Port
	modem  *radio.Modem
	nic    *radio.NIC
	mapper *mapper.Mapper
}

// New attaches a port on bus and wires the vehicle together. blocks
// must contain the vehicle's router collaborator; if it holds zero or
// several, the modem stays uninitialized and the command path is inert
// for this vehicle's lifetime while discovery keeps running.
func New(config *Config, bus medium.Bus, s *sched.Scheduler, blocks *radio.BlockRegistry, source mapper.StatusSource) (*Node, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	port, err := bus.Attach(config.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to attach %s to bus: %w", config.Name, err)
	}

	n := &Node{
		config: config,
		sched:  s,
		port:   port,
		modem:  radio.NewModem(config.Name, port, blocks),
	}
	n.nic = radio.NewNIC(config.Name, n.modem)
	n.mapper = mapper.New(config.Name, port, source, config.StatusInterval, config.StaleMultiplier)

	n.task = s.Register(config.Name, n.run)
	n.task.SetPeriodic(1)
	port.Notify(n.task.Wake)

	return n, nil
}

// Start performs the discovery startup handshake. Call it once the
// scheduler is running so replies wake us.
func (n *Node) Start() {
	n.mapper.Start()
	logger.Printf("[%s] joined grid (addr %d)", n.config.Name, n.port.Address())
}

// Stop withdraws the vehicle from the scheduler and the bus. Peers keep
// its last-known record and flip it offline after the stale timeout.
func (n *Node) Stop() {
	n.sched.Unregister(n.task)
	if err := n.port.Close(); err != nil {
		logger.Errorf("[%s] closing port: %v", n.config.Name, err)
	}
	logger.Printf("[%s] left grid", n.config.Name)
}

// run is the vehicle's single entry point.
func (n *Node) run(arg string, reason sched.Reason) {
	switch reason {
	case sched.ReasonTriggered:
		// Manual send: the argument is a grid:// URI.
		if arg == "" {
			return
		}
		if err := n.nic.SendURI(arg); err != nil {
			logger.Errorf("[%s] manual send %q: %v", n.config.Name, arg, err)
		}

	case sched.ReasonMessage, sched.ReasonContinue:
		n.modem.ServiceInbound()
		if n.mapper.ServiceInbound() {
			n.task.RequestContinue()
		}

	case sched.ReasonPeriodic:
		n.mapper.ServicePeriodic()
	}
}

// Trigger queues a manual send of rawURI on the vehicle's schedule.
func (n *Node) Trigger(rawURI string) {
	n.task.Trigger(rawURI)
}

// Send addresses a command through the NIC. For callers already on the
// invocation thread (other on-board scripts).
func (n *Node) Send(nodeName, targetName, path, query string) error {
	return n.nic.Send(nodeName, targetName, path, query)
}

// Name returns the vehicle name.
func (n *Node) Name() string { return n.config.Name }

// Address returns the bus-assigned endpoint address.
func (n *Node) Address() medium.Address { return n.port.Address() }

// CommandTag returns the routing tag this vehicle listens on.
func (n *Node) CommandTag() string { return uri.TagPrefix + n.config.Name }

// Mapper exposes the discovery engine. Snapshot access from outside the
// invocation thread must go through the scheduler's Do.
func (n *Node) Mapper() *mapper.Mapper { return n.mapper }

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }
