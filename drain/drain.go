// Package drain implements a bounded, resumable message consumer.
//
// The host scheduler caps the work one invocation may do, so a channel
// holding many simultaneous envelopes (every peer answering an init
// broadcast at once, say) must be consumed across several invocations
// rather than in one unbounded loop. A Drain is the cursor for that:
// each Advance accepts at most one pending message, and the caller
// re-arms a continuation until Advance reports done.
package drain

// Source is a channel subscription that may have a backlog.
type Source interface {
	// HasPending reports whether at least one message is queued.
	HasPending() bool
}

// Handler consumes exactly one pending message and applies its effect.
// It is only called when the source reported a pending message.
type Handler func()

// Drain is the per-channel cursor. It is either idle or mid-batch;
// the zero state is idle. Not safe for concurrent use: it belongs to
// the single invocation thread, like everything else it touches.
type Drain struct {
	source  Source
	handler Handler
	active  bool
}

// New creates a drain over source whose effect per message is handler.
func New(source Source, handler Handler) *Drain {
	return &Drain{source: source, handler: handler}
}

// HasPending reports whether the underlying source has queued messages.
func (d *Drain) HasPending() bool {
	return d.source.HasPending()
}

// Advance does one bounded step: if a message is pending it consumes
// exactly that one and returns false (more work may remain). When the
// channel is fully drained it returns true and resets to idle, whether
// or not a batch was ever started.
func (d *Drain) Advance() (done bool) {
	if !d.source.HasPending() {
		d.active = false
		return true
	}

	d.active = true
	d.handler()

	if !d.source.HasPending() {
		d.active = false
		return true
	}
	return false
}

// Active reports whether the drain is mid-batch, i.e. the last Advance
// consumed a message without exhausting the channel.
func (d *Drain) Active() bool {
	return d.active
}
