package dispatch

import (
	"fmt"
	"strings"
)

// Priority orders tasks in the pending queue. Higher values run first.
// The zero value is PriorityNormal.
type Priority int8

// Priority constants
const (
	PriorityRedundant Priority = -2
	PriorityLow       Priority = -1
	PriorityNormal    Priority = 0
	PriorityHigh      Priority = 1
	PriorityCritical  Priority = 2
)

// Valid checks if the priority is one of the known tiers
func (p Priority) Valid() bool {
	return p >= PriorityRedundant && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityRedundant:
		return "redundant"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int8(p))
	}
}

// ParsePriority converts a tier name (case-insensitive) into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redundant":
		return PriorityRedundant, nil
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return PriorityNormal, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Category is an opaque token used to pin tasks to a worker.
// The empty category is never bound.
type Category string

// Hint is an abstract scheduling weight derived from a task's priority tier.
// It is placed on the operation context so the execution substrate can
// weight its own work; the dispatcher never touches OS thread priorities.
type Hint int8

// Hint constants
const (
	HintLowest   Hint = -2
	HintReduced  Hint = -1
	HintDefault  Hint = 0
	HintElevated Hint = 1
	HintMaximum  Hint = 2
)

// HintFor maps a priority tier to its scheduling hint.
func HintFor(p Priority) Hint {
	switch p {
	case PriorityCritical:
		return HintMaximum
	case PriorityHigh:
		return HintElevated
	case PriorityLow:
		return HintReduced
	case PriorityRedundant:
		return HintLowest
	default:
		return HintDefault
	}
}

func (h Hint) String() string {
	switch h {
	case HintLowest:
		return "lowest"
	case HintReduced:
		return "reduced"
	case HintDefault:
		return "default"
	case HintElevated:
		return "elevated"
	case HintMaximum:
		return "maximum"
	default:
		return fmt.Sprintf("hint(%d)", int8(h))
	}
}

// Phase identifies the kind of progress event.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseSending      Phase = "sending"
	PhaseReceiving    Phase = "receiving"
	PhaseCompleted    Phase = "completed"
)

// Outcome describes how a task left a worker.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeKilled    Outcome = "killed"
	// OutcomeDiscarded is reported for killed tasks dropped from the queue
	// without being executed.
	OutcomeDiscarded Outcome = "discarded"
	// OutcomePaused is internal: a preempted task goes back to the queue and
	// no completion is published for it.
	OutcomePaused Outcome = "paused"
)

// WorkerState is the position of a worker in its loop.
type WorkerState string

const (
	WorkerIdle      WorkerState = "idle"
	WorkerPreparing WorkerState = "preparing"
	WorkerRunning   WorkerState = "running"
	WorkerFinishing WorkerState = "finishing"
	WorkerAbandoned WorkerState = "abandoned"
)
