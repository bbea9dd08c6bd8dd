package model

import "slices"

// ChainState represents a per-finding pipeline state. States advance
// strictly forward through the remediation sequence, with Failed as a
// parallel absorbing state reachable from anywhere.
type ChainState string

const (
	StateDiscovered ChainState = "DISCOVERED"
	StateAnalyzed   ChainState = "ANALYZED"
	StatePatched    ChainState = "PATCHED"
	StateVerified   ChainState = "VERIFIED"
	StateDeployed   ChainState = "DEPLOYED"
	StateLearned    ChainState = "LEARNED"
	StateReported   ChainState = "REPORTED"
	StateFailed     ChainState = "FAILED"
)

// AllChainStates returns the linear states in pipeline order,
// excluding the absorbing Failed state.
func AllChainStates() []ChainState {
	return []ChainState{
		StateDiscovered,
		StateAnalyzed,
		StatePatched,
		StateVerified,
		StateDeployed,
		StateLearned,
		StateReported,
	}
}

// IsValid checks if the state is valid.
func (s ChainState) IsValid() bool {
	return s == StateFailed || slices.Contains(AllChainStates(), s)
}

// String returns the string representation.
func (s ChainState) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are possible.
func (s ChainState) Terminal() bool {
	return s == StateReported || s == StateFailed
}

// Index returns the position of the state in the linear sequence,
// or -1 for Failed and unknown states.
func (s ChainState) Index() int {
	return slices.Index(AllChainStates(), s)
}

// CanTransition reports whether moving from s to next is legal.
// Legal moves are: one step forward in the linear sequence, the
// verification retry loop (PATCHED back to ANALYZED), and any
// non-terminal state into Failed.
func (s ChainState) CanTransition(next ChainState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	// Verification retry requests a new patch.
	if s == StatePatched && next == StateAnalyzed {
		return true
	}
	i, j := s.Index(), next.Index()
	return i >= 0 && j == i+1
}

// StageFor returns the stage name responsible for entering the state,
// as recorded in failure reasons and audit events.
func (s ChainState) StageFor() string {
	switch s {
	case StateDiscovered:
		return "scan"
	case StateAnalyzed:
		return "analyze"
	case StatePatched:
		return "patch"
	case StateVerified:
		return "verify"
	case StateDeployed:
		return "deploy"
	case StateLearned:
		return "learn"
	case StateReported:
		return "report"
	default:
		return ""
	}
}
