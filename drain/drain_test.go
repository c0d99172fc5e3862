package drain

import "testing"

// sliceSource is a backlog of ints consumed from the front.
type sliceSource struct {
	pending []int
}

func (s *sliceSource) HasPending() bool { return len(s.pending) > 0 }

func (s *sliceSource) pop() int {
	v := s.pending[0]
	s.pending = s.pending[1:]
	return v
}

func TestAdvanceConsumesOnePerCall(t *testing.T) {
	src := &sliceSource{pending: []int{1, 2, 3, 4, 5}}
	var got []int
	d := New(src, func() { got = append(got, src.pop()) })

	advances := 0
	for !d.Advance() {
		advances++
		if len(got) != advances {
			t.Fatalf("after %d advances consumed %d messages", advances, len(got))
		}
	}
	advances++

	if len(got) != 5 {
		t.Fatalf("consumed %d messages, want 5", len(got))
	}
	// The final advance consumes the last message and reports done.
	if advances != 5 {
		t.Errorf("took %d advances for 5 messages, want 5", advances)
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("got[%d] = %d, want %d (FIFO order)", i, v, i+1)
		}
	}
}

func TestAdvanceOnEmptyIsDone(t *testing.T) {
	src := &sliceSource{}
	d := New(src, func() { t.Fatal("handler called with nothing pending") })

	if !d.Advance() {
		t.Error("Advance on empty source should report done")
	}
	if d.Active() {
		t.Error("drain should be idle after draining nothing")
	}
}

func TestResumesAcrossNewArrivals(t *testing.T) {
	src := &sliceSource{pending: []int{1, 2}}
	consumed := 0
	d := New(src, func() { src.pop(); consumed++ })

	if d.Advance() {
		t.Fatal("first advance should not be done with 2 pending")
	}
	if !d.Active() {
		t.Error("drain should be mid-batch")
	}

	// A new message lands mid-batch; the cursor just keeps going.
	src.pending = append(src.pending, 3)

	if d.Advance() {
		t.Fatal("second advance should not be done with 1 pending")
	}
	if !d.Advance() {
		t.Fatal("third advance should finish the batch")
	}
	if consumed != 3 {
		t.Errorf("consumed %d, want 3", consumed)
	}
	if d.Active() {
		t.Error("drain should be idle when done")
	}

	// Idle drain restarts cleanly on the next batch.
	src.pending = []int{4}
	if !d.Advance() {
		t.Fatal("single-message batch should finish in one advance")
	}
	if consumed != 4 {
		t.Errorf("consumed %d, want 4", consumed)
	}
}
