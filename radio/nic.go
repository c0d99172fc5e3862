package radio

import (
	"strings"

	"github.com/fleetsim/gridnet/logger"
	"github.com/fleetsim/gridnet/uri"
)

// NIC is the convenience sender the vehicle's other scripts hold. It
// assembles a grid:// URI from parts and forwards it to the modem.
type NIC struct {
	name  string
	modem *Modem
}

// NewNIC creates a facade over modem for the vehicle named name.
func NewNIC(name string, modem *Modem) *NIC {
	return &NIC{name: name, modem: modem}
}

// Send addresses target on node and publishes the command. path and
// query may be empty; when given they are normalized to start with '/'
// and '?' respectively, so callers can pass either form.
//
// A malformed address is returned synchronously as an error and nothing
// is sent. An uninitialized modem makes Send a logged no-op reported as
// ErrNotReady.
func (n *NIC) Send(nodeName, targetName, path, query string) error {
	if !n.modem.Ready() {
		logger.Printf("[%s] dropping send to %s/%s: %v", n.name, nodeName, targetName, ErrNotReady)
		return ErrNotReady
	}

	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if query != "" && !strings.HasPrefix(query, "?") {
		query = "?" + query
	}

	u, err := uri.Parse(uri.Scheme + nodeName + "/" + targetName + path + query)
	if err != nil {
		return err
	}
	n.modem.Send(u)
	return nil
}

// SendURI parses and sends an already-assembled grid:// string, the
// path a triggered invocation argument takes.
func (n *NIC) SendURI(raw string) error {
	if !n.modem.Ready() {
		logger.Printf("[%s] dropping send %q: %v", n.name, raw, ErrNotReady)
		return ErrNotReady
	}
	u, err := uri.Parse(raw)
	if err != nil {
		return err
	}
	n.modem.Send(u)
	return nil
}
