package radio

import (
	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/medium"
	"github.com/fleetsim/gridnet/uri"
)

// Modem is the vehicle's transport endpoint. It has two states:
// uninitialized and ready. Construction succeeds into the ready state
// only when the block registry yields exactly one router; otherwise the
// modem stays inert for the vehicle's whole lifetime and every send and
// receive is a silent no-op. That failure is reported once, here, at
// startup.
type Modem struct {
	name     string
	port     medium.Port
	router   Router
	commands medium.Listener
	ready    bool
}

// NewModem discovers the router collaborator and registers the command
// subscription NET:<name>. The port is the vehicle's already-attached
// bus port; the modem shares it with the discovery engine.
func NewModem(name string, port medium.Port, blocks *BlockRegistry) *Modem {
	m := &Modem{name: name, port: port}

	router, err := blocks.findRouter()
	if err != nil {
		logger.Errorf("[%s] modem init failed: %v", name, err)
		return m
	}

	m.router = router
	m.commands = port.Listen(uri.TagPrefix + name)
	m.ready = true
	return m
}

// Ready reports whether the modem initialized.
func (m *Modem) Ready() bool { return m.ready }

// Send compiles u and publishes the envelope. Fire-and-forget: the
// medium offers no acknowledgement, so there is no retry and no
// delivery result.
func (m *Modem) Send(u uri.GridURI) {
	if !m.ready {
		return
	}
	m.port.Broadcast(u.CompileTag(), u.CompileData())
}

// ServiceInbound drains every currently pending command envelope and
// hands each payload to the router. Command traffic is assumed
// low-rate, so unlike the discovery channels this path is not spread
// across invocations. Non-string payloads are ignored.
func (m *Modem) ServiceInbound() {
	if !m.ready {
		return
	}
	for m.commands.HasPending() {
		env, ok := m.commands.Accept()
		if !ok {
			return
		}
		data, ok := env.Data.(string)
		if !ok {
			continue
		}
		m.router.HandleCommand(data)
	}
}
