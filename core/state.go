package assistant

// State is the single interaction state of the assistant.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// CanListen reports whether capture may start from s.
func (s State) CanListen() bool {
	return s == StateIdle || s == StateError
}

var validTransitions = map[State][]State{
	StateIdle:      {StateListening, StateThinking, StateError},
	StateListening: {StateThinking, StateIdle, StateError},
	StateThinking:  {StateSpeaking, StateIdle},
	StateSpeaking:  {StateIdle, StateError},
	StateError:     {StateListening, StateThinking, StateIdle},
}

func canTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
