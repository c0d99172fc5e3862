package sched

import (
	"testing"
	"time"
)

func TestPeriodicInvocations(t *testing.T) {
	s := New(10 * time.Millisecond)

	count := 0
	task := s.Register("v", func(arg string, reason Reason) {
		if reason == ReasonPeriodic {
			count++
		}
	})
	task.SetPeriodic(1)

	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop()

	if count < 5 {
		t.Errorf("got %d periodic invocations in 120ms at 10ms ticks, want at least 5", count)
	}
}

func TestTriggerCarriesArgument(t *testing.T) {
	s := New(10 * time.Millisecond)

	args := make(chan string, 1)
	task := s.Register("v", func(arg string, reason Reason) {
		if reason == ReasonTriggered {
			args <- arg
		}
	})

	s.Start()
	defer s.Stop()

	task.Trigger("grid://Outpost/Lights?on")
	select {
	case got := <-args:
		if got != "grid://Outpost/Lights?on" {
			t.Errorf("arg = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("trigger never dispatched")
	}
}

func TestContinueRearmsUntilDone(t *testing.T) {
	s := New(10 * time.Millisecond)

	// Simulate a backlog of 5 items drained one per invocation.
	remaining := 5
	done := make(chan struct{})
	var task *Task
	task = s.Register("v", func(arg string, reason Reason) {
		if reason != ReasonMessage && reason != ReasonContinue {
			return
		}
		remaining--
		if remaining > 0 {
			task.RequestContinue()
		} else {
			close(done)
		}
	})

	s.Start()
	defer s.Stop()

	task.Wake()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("backlog never drained, %d remaining", remaining)
	}
}

func TestDoRunsOnLoop(t *testing.T) {
	s := New(10 * time.Millisecond)

	// Loop-owned state, touched only by the entry and Do closures.
	state := 0
	task := s.Register("v", func(arg string, reason Reason) {
		if reason == ReasonPeriodic {
			state++
		}
	})
	task.SetPeriodic(1)

	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	var snapshot int
	s.Do(func() { snapshot = state })
	if snapshot == 0 {
		t.Error("Do observed no periodic progress")
	}
}

func TestUnregisterStopsInvocations(t *testing.T) {
	s := New(10 * time.Millisecond)

	invoked := make(chan struct{}, 64)
	task := s.Register("v", func(arg string, reason Reason) {
		invoked <- struct{}{}
	})
	task.SetPeriodic(1)

	s.Start()
	defer s.Stop()

	time.Sleep(30 * time.Millisecond)
	s.Unregister(task)

	// Drain anything in flight, then require silence.
	for {
		select {
		case <-invoked:
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
	select {
	case <-invoked:
		t.Error("task invoked after Unregister")
	case <-time.After(50 * time.Millisecond):
	}
}
