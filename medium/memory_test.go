package medium

import (
	"fmt"
	"testing"
)

func attach(t *testing.T, bus *Memory, name string) Port {
	t.Helper()
	p, err := bus.Attach(name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBroadcastReachesSubscribersOnly(t *testing.T) {
	bus := NewMemory()
	a := attach(t, bus, "a")
	b := attach(t, bus, "b")
	c := attach(t, bus, "c")

	bListener := b.Listen("CH")
	// c never subscribes to CH.

	a.Broadcast("CH", "hello")

	env, ok := bListener.Accept()
	if !ok {
		t.Fatal("subscriber got nothing")
	}
	if env.Data != "hello" || env.Source != a.Address() || env.Tag != "CH" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if c.Listen("CH").HasPending() {
		t.Error("late subscriber received a broadcast from before it listened")
	}
}

func TestBroadcastNeverLoopsBackToSender(t *testing.T) {
	bus := NewMemory()
	a := attach(t, bus, "a")
	attach(t, bus, "b")

	// Even a sender subscribed to its own tag must not hear itself.
	aListener := a.Listen("CH")
	a.Broadcast("CH", "x")

	if aListener.HasPending() {
		t.Error("sender received its own broadcast")
	}
}

func TestUnicastDelivery(t *testing.T) {
	bus := NewMemory()
	a := attach(t, bus, "a")
	b := attach(t, bus, "b")

	a.Unicast(b.Address(), "STATUS", "ping")

	env, ok := b.Inbox().Accept()
	if !ok {
		t.Fatal("unicast not delivered")
	}
	if env.Tag != "STATUS" || env.Source != a.Address() {
		t.Errorf("unexpected envelope %+v", env)
	}
	if a.Inbox().HasPending() {
		t.Error("sender's inbox should be empty")
	}

	// Unicast to a departed address is silently lost.
	b.Close()
	a.Unicast(b.Address(), "STATUS", "pong")
}

func TestFIFOPerChannel(t *testing.T) {
	bus := NewMemory()
	a := attach(t, bus, "a")
	b := attach(t, bus, "b")

	l := b.Listen("CH")
	for i := 0; i < 5; i++ {
		a.Broadcast("CH", fmt.Sprintf("m%d", i))
	}
	for i := 0; i < 5; i++ {
		env, ok := l.Accept()
		if !ok {
			t.Fatalf("missing message %d", i)
		}
		if want := fmt.Sprintf("m%d", i); env.Data != want {
			t.Errorf("message %d = %v, want %s", i, env.Data, want)
		}
	}
}

func TestBacklogDropsWhenFull(t *testing.T) {
	bus := NewMemory()
	a := attach(t, bus, "a")
	b := attach(t, bus, "b")

	l := b.Listen("CH")
	for i := 0; i < backlogDepth+10; i++ {
		a.Broadcast("CH", i)
	}

	count := 0
	for l.HasPending() {
		l.Accept()
		count++
	}
	if count != backlogDepth {
		t.Errorf("backlog held %d envelopes, want %d", count, backlogDepth)
	}
}

func TestNotifyFiresOnDelivery(t *testing.T) {
	bus := NewMemory()
	a := attach(t, bus, "a")
	b := attach(t, bus, "b")

	b.Listen("CH")
	wakes := 0
	b.Notify(func() { wakes++ })

	a.Broadcast("CH", "x")
	a.Unicast(b.Address(), "STATUS", "y")

	if wakes != 2 {
		t.Errorf("got %d wakeups, want 2", wakes)
	}
}

func TestAddressesAreUniquePerAttachment(t *testing.T) {
	bus := NewMemory()
	seen := make(map[Address]bool)
	for i := 0; i < 10; i++ {
		p := attach(t, bus, "v")
		if seen[p.Address()] {
			t.Fatalf("address %d assigned twice", p.Address())
		}
		seen[p.Address()] = true
		p.Close()
	}
}
