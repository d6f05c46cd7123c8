package pipeline

// State is a controller state.
type State int

const (
	StateStart State = iota
	StateValidateEnv
	StateAcquireLock
	StateRunFetch
	StateRunTranscribe
	StateSleep
	StateEnd
)

var stateNames = [...]string{
	StateStart:         "Start",
	StateValidateEnv:   "ValidateEnv",
	StateAcquireLock:   "AcquireLock",
	StateRunFetch:      "RunFetch",
	StateRunTranscribe: "RunTranscribe",
	StateSleep:         "Sleep",
	StateEnd:           "End",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
