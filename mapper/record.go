// Package mapper implements peer discovery and liveness gossip: each
// vehicle periodically announces its own status on a shared broadcast
// channel, answers init broadcasts from newcomers with a unicast copy,
// and folds everything it hears into a map of last-known peer records.
package mapper

import (
	"errors"
	"fmt"

	"github.com/fleetsim/gridnet/medium"
)

// Discovery channel tags, shared by every participant. Unicast status
// replies reuse TagStatus.
const (
	TagStatus = "STATUS"
	TagInit   = "INIT"
)

var errBadStatus = errors.New("mapper: malformed status payload")

// Vector3 is a position or velocity in grid space.
type Vector3 struct {
	X, Y, Z float64
}

// PeerRecord is the cached last-known state of one remote vehicle.
//
// When a vehicle describes itself the Address field is zero: a sender
// does not know its own bus-assigned address. The receiver fills it in
// from the envelope source, which is also the peer-map key.
type PeerRecord struct {
	Address      medium.Address
	Name         string
	Position     Vector3
	Velocity     Vector3
	Range        float64
	Online       bool
	LastUpdateMs int64
}

// encodeStatus flattens a record into the field map carried on the
// discovery channels.
func encodeStatus(r PeerRecord) map[string]any {
	return map[string]any{
		"name":       r.Name,
		"position_x": r.Position.X,
		"position_y": r.Position.Y,
		"position_z": r.Position.Z,
		"velocity_x": r.Velocity.X,
		"velocity_y": r.Velocity.Y,
		"velocity_z": r.Velocity.Z,
		"range":      r.Range,
		"online":     r.Online,
		"timestamp":  r.LastUpdateMs,
	}
}

// decodeStatus rebuilds a record from a received field map. Numbers may
// arrive as int64 or float64 depending on which bus carried them (the
// zmq bridge round-trips through JSON).
func decodeStatus(data any) (PeerRecord, error) {
	fields, ok := data.(map[string]any)
	if !ok {
		return PeerRecord{}, fmt.Errorf("%w: %T", errBadStatus, data)
	}

	name, ok := fields["name"].(string)
	if !ok || name == "" {
		return PeerRecord{}, fmt.Errorf("%w: missing name", errBadStatus)
	}
	online, ok := fields["online"].(bool)
	if !ok {
		return PeerRecord{}, fmt.Errorf("%w: missing online", errBadStatus)
	}
	ts, ok := asInt64(fields["timestamp"])
	if !ok {
		return PeerRecord{}, fmt.Errorf("%w: missing timestamp", errBadStatus)
	}

	r := PeerRecord{
		Name:         name,
		Online:       online,
		LastUpdateMs: ts,
	}
	var okAll = true
	r.Position.X, okAll = asFloat(fields["position_x"], okAll)
	r.Position.Y, okAll = asFloat(fields["position_y"], okAll)
	r.Position.Z, okAll = asFloat(fields["position_z"], okAll)
	r.Velocity.X, okAll = asFloat(fields["velocity_x"], okAll)
	r.Velocity.Y, okAll = asFloat(fields["velocity_y"], okAll)
	r.Velocity.Z, okAll = asFloat(fields["velocity_z"], okAll)
	r.Range, okAll = asFloat(fields["range"], okAll)
	if !okAll {
		return PeerRecord{}, fmt.Errorf("%w: bad numeric field", errBadStatus)
	}
	return r, nil
}

func asFloat(v any, okSoFar bool) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, okSoFar
	case int64:
		return float64(n), okSoFar
	case int:
		return float64(n), okSoFar
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}
