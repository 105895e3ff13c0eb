// Package repcount implements the per-exercise repetition state machines.
//
// Each exercise has a pure step function (state in, state out) and a
// Counter that owns one State and applies steps to it. The exercises use
// slightly different debounce rules; they are kept separate on purpose
// because the frame at which a count increments is observable.
package repcount

import (
	"fmt"

	"github.com/teslashibe/fitview/pkg/exercise"
	"github.com/teslashibe/fitview/pkg/feature"
)

// HistorySize is the length of the debounce history.
const HistorySize = 2

// State is the snapshot of one counter.
//
// Phase means "going to knee" for sit-ups and "going down" for squats and
// push-ups. History is unused by sit-ups.
type State struct {
	Count   int               `json:"count"`
	Phase   bool              `json:"phase"`
	History [HistorySize]bool `json:"history"`
}

// InitialSitup is the starting state for sit-ups: not heading to the knees.
func InitialSitup() State {
	return State{}
}

// InitialSquat is the starting state for squats: going down, empty history.
func InitialSquat() State {
	return State{Phase: true}
}

// InitialPushup is the starting state for push-ups: going down, empty history.
func InitialPushup() State {
	return State{Phase: true}
}

// StepSitup applies one distance sample to a sit-up state.
// Rising above High arms the counter; falling below Low while armed counts.
func StepSitup(s State, v float64, cfg SitupConfig) State {
	if s.Phase {
		if v < cfg.Low {
			s.Phase = false
			s.Count++
		}
		return s
	}
	if v > cfg.High {
		s.Phase = true
	}
	return s
}

// StepSquat applies one knee-angle sample to a squat state.
// Both history slots must be set and the angle still below Down before a
// rep commits. History is not cleared when the counter re-arms.
func StepSquat(s State, v float64, cfg SquatConfig) State {
	if s.Phase {
		below := v < cfg.Down
		if below && !s.History[0] {
			s.History[0] = true
		}
		if below && !s.History[1] {
			s.History[1] = true
		}
		if s.History[0] && s.History[1] && below {
			s.Count++
			s.Phase = false
		}
		return s
	}
	if v > cfg.Up {
		s.Phase = true
	}
	return s
}

// StepPushup applies one hands-to-head distance sample to a push-up state.
// A rep commits on the sample that newly sets the second history slot.
// Re-arming above Up clears the history.
func StepPushup(s State, v float64, cfg PushupConfig) State {
	if s.Phase {
		below := v < cfg.Down
		if below && !s.History[0] {
			s.History[0] = true
		}
		if below && !s.History[1] {
			s.History[1] = true
			s.Count++
			s.Phase = false
		}
		return s
	}
	if v > cfg.Up {
		s.Phase = true
		s.History = [HistorySize]bool{}
	}
	return s
}

// Counter owns the state of one exercise's state machine.
type Counter interface {
	// Kind returns the exercise this counter tracks.
	Kind() exercise.Kind

	// Update applies one feature sample and returns the new state.
	Update(v float64) State

	// State returns the current state.
	State() State

	// Reset returns the counter to its initial state.
	Reset()

	// Credit adds n reps to the count without touching phase or history.
	// Negative n is ignored so the count never decreases.
	Credit(n int)
}

type stepFunc func(State, float64) State

type counter struct {
	kind    exercise.Kind
	initial State
	step    stepFunc
	state   State
}

func (c *counter) Kind() exercise.Kind { return c.kind }

func (c *counter) Update(v float64) State {
	c.state = c.step(c.state, v)
	return c.state
}

func (c *counter) State() State { return c.state }

func (c *counter) Reset() { c.state = c.initial }

func (c *counter) Credit(n int) {
	if n > 0 {
		c.state.Count += n
	}
}

// NewSitup creates a sit-up counter.
func NewSitup(cfg SitupConfig) Counter {
	return &counter{
		kind:    exercise.Situps,
		initial: InitialSitup(),
		state:   InitialSitup(),
		step:    func(s State, v float64) State { return StepSitup(s, v, cfg) },
	}
}

// NewSquat creates a squat counter.
func NewSquat(cfg SquatConfig) Counter {
	return &counter{
		kind:    exercise.Squats,
		initial: InitialSquat(),
		state:   InitialSquat(),
		step:    func(s State, v float64) State { return StepSquat(s, v, cfg) },
	}
}

// NewPushup creates a push-up counter.
func NewPushup(cfg PushupConfig) Counter {
	return &counter{
		kind:    exercise.Pushups,
		initial: InitialPushup(),
		state:   InitialPushup(),
		step:    func(s State, v float64) State { return StepPushup(s, v, cfg) },
	}
}

// New creates the counter for kind. Kinds without counting logic return
// an error wrapping feature.ErrNotImplemented.
func New(kind exercise.Kind, cfg Config) (Counter, error) {
	switch kind {
	case exercise.Situps:
		return NewSitup(cfg.Situps), nil
	case exercise.Squats:
		return NewSquat(cfg.Squats), nil
	case exercise.Pushups:
		return NewPushup(cfg.Pushups), nil
	default:
		return nil, fmt.Errorf("repcount: %w: %v", feature.ErrNotImplemented, kind)
	}
}
