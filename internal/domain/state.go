package domain

// RunState is the lifecycle state of a session's current episode.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
	StateStopped RunState = "stopped"
)

// Active reports whether an episode is in progress (running or paused).
func (s RunState) Active() bool {
	return s == StateRunning || s == StatePaused
}
