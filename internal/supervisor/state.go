// Package supervisor manages the lifecycle of the fixture's long-running
// services (the IceGrid registry and node).
package supervisor

// State represents the current state of a managed service.
type State int

const (
	// StateStopped is both the initial state and the terminal state after a
	// clean shutdown.
	StateStopped State = iota

	// StateStarting indicates the service process has been spawned but has
	// not yet signaled readiness.
	StateStarting

	// StateRunning indicates the service observed its readiness signal and
	// is serving.
	StateRunning

	// StateStopping indicates a shutdown has been requested and the service
	// is being joined.
	StateStopping
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents a live service process
// (starting, running, or being stopped).
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateStopping
}
