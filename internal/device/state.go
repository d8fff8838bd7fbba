package device

import "time"

// State is the device polling state. Only the Scheduler moves it.
type State int

const (
	StateIdle State = iota
	StateWarmingUp
	StateReading
	StateErroring
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateWarmingUp: "warm_up",
	StateReading:   "reading",
	StateErroring:  "erroring",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// States lists every state in declaration order.
func States() []State {
	return []State{StateIdle, StateWarmingUp, StateReading, StateErroring}
}

var transitions = map[State][]State{
	StateIdle:      {StateWarmingUp},
	StateWarmingUp: {StateReading, StateErroring},
	StateReading:   {StateIdle, StateErroring},
	StateErroring:  {StateWarmingUp},
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusSnapshot is an immutable view of the scheduler, replaced as a whole
// after every transition.
type StatusSnapshot struct {
	State             State
	LastException     string
	NextScheduledTime time.Time
}

// Alive reports whether the last cycle did not fail.
func (s StatusSnapshot) Alive() bool {
	return s.State != StateErroring
}
