// Package radio is a vehicle's attachment to the medium: the Modem
// (transport endpoint) that moves command envelopes on and off the bus,
// and the NIC, the thin facade the vehicle's scripts send through.
package radio

import (
	"errors"
	"strings"
)

var (
	ErrNoRouter        = errors.New("radio: no router block on this vehicle")
	ErrAmbiguousRouter = errors.New("radio: more than one router block on this vehicle")
	ErrNotReady        = errors.New("radio: modem uninitialized")
)

// Router dispatches a delivered command payload to a local effector.
// Execution failures are the router's own responsibility; the modem
// neither catches nor reports them.
type Router interface {
	HandleCommand(data string)
}

// RouterFunc adapts a function to the Router interface.
type RouterFunc func(data string)

func (f RouterFunc) HandleCommand(data string) { f(data) }

// routerNameTag is the naming convention the modem discovers its router
// collaborator by.
const routerNameTag = "router"

// BlockRegistry holds a vehicle's named on-board collaborators. Each
// vehicle constructs its own registry at startup; there is no shared
// process-wide block table.
type BlockRegistry struct {
	names  []string
	blocks map[string]any
}

// NewBlockRegistry creates an empty registry.
func NewBlockRegistry() *BlockRegistry {
	return &BlockRegistry{blocks: make(map[string]any)}
}

// Add registers block under name. A duplicate name replaces the block
// but keeps its registration order.
func (r *BlockRegistry) Add(name string, block any) {
	if _, ok := r.blocks[name]; !ok {
		r.names = append(r.names, name)
	}
	r.blocks[name] = block
}

// Get returns the block registered under name.
func (r *BlockRegistry) Get(name string) (any, bool) {
	b, ok := r.blocks[name]
	return b, ok
}

// findRouter applies the naming convention: blocks whose name contains
// "router" (case-insensitive) are candidates, and exactly one candidate
// implementing Router must exist.
func (r *BlockRegistry) findRouter() (Router, error) {
	var found Router
	count := 0
	for _, name := range r.names {
		if !strings.Contains(strings.ToLower(name), routerNameTag) {
			continue
		}
		count++
		if rt, ok := r.blocks[name].(Router); ok {
			found = rt
		}
	}
	switch {
	case count == 0:
		return nil, ErrNoRouter
	case count > 1:
		return nil, ErrAmbiguousRouter
	case found == nil:
		return nil, ErrNoRouter
	}
	return found, nil
}
