package flow

// State is the screen the user is on.
type State int

const (
	StateHome State = iota
	StateCapture
	StateAnalyzing
	StateResult
)

// String returns a human-readable name for the State.
func (s State) String() string {
	switch s {
	case StateHome:
		return "Home"
	case StateCapture:
		return "Capture"
	case StateAnalyzing:
		return "Analyzing"
	case StateResult:
		return "Result"
	default:
		return "Unknown"
	}
}
