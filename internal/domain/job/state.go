// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

// State is the lifecycle position of a Job inside the pipeline.
type State string

const (
	StateCreated     State = "created"
	StateAcquiring   State = "acquiring"
	StateAcquired    State = "acquired"
	StateTranscoding State = "transcoding"
	StateReady       State = "ready"
	StateServed      State = "served"
	StateFailed      State = "failed"
	StateCleaned     State = "cleaned"
)

// IsTerminal reports whether the job finished its useful work.
// Cleaned is reachable only from a terminal state.
func (s State) IsTerminal() bool {
	switch s {
	case StateServed, StateFailed, StateCleaned:
		return true
	}
	return false
}

// transition is a single allowed edge in the job state machine.
type transition struct {
	From State
	To   State
}

var transitionsTable = []transition{
	// Happy path
	{From: StateCreated, To: StateAcquiring},
	{From: StateAcquiring, To: StateAcquired},
	{From: StateAcquired, To: StateTranscoding},
	{From: StateTranscoding, To: StateReady},
	{From: StateAcquired, To: StateReady}, // transcode skipped
	{From: StateReady, To: StateServed},

	// Failure from any non-terminal state
	{From: StateCreated, To: StateFailed},
	{From: StateAcquiring, To: StateFailed},
	{From: StateAcquired, To: StateFailed},
	{From: StateTranscoding, To: StateFailed},
	{From: StateReady, To: StateFailed},

	// Cleanup
	{From: StateServed, To: StateCleaned},
	{From: StateFailed, To: StateCleaned},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to State) bool {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}
