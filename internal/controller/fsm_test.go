package controller

import (
	"context"
	"testing"
)

func TestMachine_HappyPathTransitions(t *testing.T) {
	m := newMachine()
	ctx := context.Background()

	steps := []struct {
		event Event
		want  State
	}{
		{EventLoad, StateLoading},
		{EventOpenOK, StateReady},
		{EventPlay, StatePlaying},
		{EventPause, StatePaused},
		{EventPlay, StatePlaying},
	}
	for _, s := range steps {
		got, err := m.Fire(ctx, s.event)
		if err != nil {
			t.Fatalf("Fire(%s): unexpected error: %v", s.event, err)
		}
		if got != s.want {
			t.Errorf("Fire(%s): got state %s, want %s", s.event, got, s.want)
		}
	}
}

func TestMachine_InvalidTransitionIsError(t *testing.T) {
	m := newMachine()
	ctx := context.Background()
	if _, err := m.Fire(ctx, EventPlay); err == nil {
		t.Fatal("expected error firing play from idle")
	}
	if m.State() != StateIdle {
		t.Errorf("state should be unchanged after a rejected event, got %s", m.State())
	}
}

func TestMachine_SeekDoneResolvesToPreSeekStatePlaying(t *testing.T) {
	m := newMachine()
	ctx := context.Background()
	mustFire(t, m, EventLoad)
	mustFire(t, m, EventOpenOK)
	mustFire(t, m, EventPlay)

	if got, err := m.Fire(ctx, EventSeek); err != nil || got != StateSeeking {
		t.Fatalf("seek from playing: got %s, err %v", got, err)
	}
	got, err := m.Fire(ctx, EventSeekDone)
	if err != nil {
		t.Fatalf("seek_done: unexpected error: %v", err)
	}
	if got != StatePlaying {
		t.Errorf("seek_done from a playing-originated seek should restore playing, got %s", got)
	}
}

func TestMachine_SeekDoneResolvesToPreSeekStatePaused(t *testing.T) {
	m := newMachine()
	ctx := context.Background()
	mustFire(t, m, EventLoad)
	mustFire(t, m, EventOpenOK)
	mustFire(t, m, EventPlay)
	mustFire(t, m, EventPause)

	if got, err := m.Fire(ctx, EventSeek); err != nil || got != StateSeeking {
		t.Fatalf("seek from paused: got %s, err %v", got, err)
	}
	got, err := m.Fire(ctx, EventSeekDone)
	if err != nil {
		t.Fatalf("seek_done: unexpected error: %v", err)
	}
	if got != StatePaused {
		t.Errorf("seek_done from a paused-originated seek should restore paused, got %s", got)
	}
}

func TestMachine_FatalFromAnyNonErrorState(t *testing.T) {
	for _, from := range allStates() {
		if from == StateError {
			continue
		}
		m := &Machine{state: from, index: newMachine().index}
		got, err := m.Fire(context.Background(), EventFatal)
		if err != nil {
			t.Errorf("fatal from %s: unexpected error: %v", from, err)
		}
		if got != StateError {
			t.Errorf("fatal from %s: got %s, want error", from, got)
		}
	}
}

// TestMachine_ConcurrentTransitionDetected exercises Fire's post-Action
// recheck by installing a Guard that mutates state out from under the
// in-flight Fire call, the same way a second goroutine's Fire would.
func TestMachine_ConcurrentTransitionDetected(t *testing.T) {
	m := &Machine{state: StateReady, index: map[string]transition{}}
	m.index[key(StateReady, EventPlay)] = transition{
		From:  StateReady,
		Event: EventPlay,
		To:    StatePlaying,
		Guard: func(ctx context.Context, from State, event Event) error {
			m.mu.Lock()
			m.state = StatePaused
			m.mu.Unlock()
			return nil
		},
	}

	_, err := m.Fire(context.Background(), EventPlay)
	if err == nil {
		t.Fatal("expected a concurrent-transition error")
	}
	if m.State() != StatePaused {
		t.Errorf("state should retain the interleaving goroutine's write, got %s", m.State())
	}
}

func mustFire(t *testing.T, m *Machine, e Event) State {
	t.Helper()
	s, err := m.Fire(context.Background(), e)
	if err != nil {
		t.Fatalf("Fire(%s): unexpected error: %v", e, err)
	}
	return s
}
