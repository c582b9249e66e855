package model

type TimerState int8

const (
	TimerStateIdle = TimerState(iota)
	TimerStateRunning
	TimerStateFinished
)

func (s TimerState) String() string {
	switch s {
	case TimerStateRunning:
		return "running"
	case TimerStateFinished:
		return "finished"
	default:
		return "idle"
	}
}

type TimerSnapshot struct {
	State   TimerState
	Name    string
	Seconds int
	Phrase  string

	// Progress is a percentage of the countdown already elapsed.
	Progress int
}
