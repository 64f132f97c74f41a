package confirmation

// State is the lifecycle of one delivered request.
type State int

const (
	// Pending requests can still be answered.
	Pending State = iota
	// Answered requests received a reply from their recipient.
	Answered
	// Expired requests were still pending when the window closed.
	Expired
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Answered:
		return "answered"
	case Expired:
		return "expired"
	}
	return "unknown"
}
