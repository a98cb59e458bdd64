// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"fmt"
	"sync"
)

// State is the Playback Controller's finite state (spec.md §4.11).
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
	StateSeeking   State = "seeking"
	StateEnded     State = "ended"
	StateError     State = "error"
)

// Event drives a Machine transition (spec.md §4.11).
type Event string

const (
	EventLoad       Event = "load"
	EventOpenOK     Event = "open_ok"
	EventFail       Event = "fail"
	EventPlay       Event = "play"
	EventPause      Event = "pause"
	EventSeek       Event = "seek"
	EventSeekDone   Event = "seek_done"
	EventUnderflow  Event = "underflow"
	EventRefilled   Event = "refilled"
	EventEOF        Event = "eof"
	EventFatal      Event = "fatal"
	EventClose      Event = "close"
)

// transition describes a single FSM edge. Guard may reject the transition;
// Action performs side effects. Adapted from the teacher's generic
// Machine[S,E] runner (internal/pipeline/fsm), specialized here to
// concrete State/Event types and given an explicit "previous of
// {playing, paused}" resolver for the seek-done transition (spec.md
// §4.11's one non-static edge).
type transition struct {
	From   State
	Event  Event
	To     State // zero value means "resolved dynamically"; see Fire
	Guard  func(ctx context.Context, from State, event Event) error
	Action func(ctx context.Context, from State, to State, event Event) error
}

// Machine is a small, test-friendly FSM runner, strict: unknown
// transitions are errors, and a transition that finds state already moved
// out from under it by the time Action completes is reported as a
// concurrent-transition error rather than silently overwritten.
type Machine struct {
	mu    sync.Mutex
	state State
	index map[string]transition

	// preSeekState is the state to restore to on seek_done (spec.md
	// §4.11: "(previous of {playing, paused})"), captured on entry to
	// seeking.
	preSeekState State
}

func key(from State, event Event) string {
	return string(from) + "|" + string(event)
}

// newMachine builds the Machine with the full transition table from
// spec.md §4.11.
func newMachine() *Machine {
	m := &Machine{state: StateIdle, index: map[string]transition{}}

	add := func(t transition) {
		k := key(t.From, t.Event)
		if _, exists := m.index[k]; exists {
			panic(fmt.Sprintf("duplicate transition: %s -> %s", t.From, t.Event))
		}
		m.index[k] = t
	}

	add(transition{From: StateIdle, Event: EventLoad, To: StateLoading})
	add(transition{From: StateLoading, Event: EventOpenOK, To: StateReady})
	add(transition{From: StateLoading, Event: EventFail, To: StateError})
	add(transition{From: StateReady, Event: EventPlay, To: StatePlaying})
	add(transition{From: StatePlaying, Event: EventPause, To: StatePaused})
	add(transition{From: StatePaused, Event: EventPlay, To: StatePlaying})

	for _, from := range []State{StatePlaying, StatePaused, StateReady} {
		add(transition{From: from, Event: EventSeek, To: StateSeeking})
	}
	add(transition{From: StateSeeking, Event: EventSeekDone}) // To resolved dynamically, see Fire

	add(transition{From: StatePlaying, Event: EventUnderflow, To: StateBuffering})
	add(transition{From: StateBuffering, Event: EventRefilled, To: StatePlaying})
	add(transition{From: StatePlaying, Event: EventEOF, To: StateEnded})
	add(transition{From: StateEnded, Event: EventPlay, To: StatePlaying}) // controller issues an implicit seek(0) first

	for _, from := range allStates() {
		if from == StateError {
			continue
		}
		add(transition{From: from, Event: EventFatal, To: StateError})
		add(transition{From: from, Event: EventClose, To: StateIdle})
	}

	return m
}

func allStates() []State {
	return []State{StateIdle, StateLoading, StateReady, StatePlaying, StatePaused, StateBuffering, StateSeeking, StateEnded, StateError}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire attempts to apply an event atomically, returning the resulting state.
func (m *Machine) Fire(ctx context.Context, event Event) (State, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("invalid transition: state=%s event=%s", from, event)
	}

	if event == EventSeek {
		m.preSeekState = from
	}

	to := t.To
	if from == StateSeeking && event == EventSeekDone {
		to = m.preSeekState
	}
	m.mu.Unlock()

	if t.Guard != nil {
		if err := t.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, from, to, event); err != nil {
			return from, err
		}
	}

	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("concurrent transition detected: from=%s cur=%s event=%s", from, cur, event)
	}
	m.state = to
	m.mu.Unlock()

	return to, nil
}
