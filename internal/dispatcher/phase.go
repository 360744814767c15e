package dispatcher

// Phase is a step in the life of one invocation. Phases run in order and an
// invocation stops at the first failing one.
type Phase int

const (
	PhaseReceived Phase = iota
	// PhaseResolving looks the tool up. It runs before authentication so an
	// unknown tool is reported as not found whatever the credential.
	PhaseResolving
	PhaseAuthenticating
	PhaseValidating
	PhaseExecuting
	PhaseResponding
)

func (p Phase) String() string {
	switch p {
	case PhaseReceived:
		return "received"
	case PhaseResolving:
		return "resolving"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseValidating:
		return "validating"
	case PhaseExecuting:
		return "executing"
	case PhaseResponding:
		return "responding"
	default:
		return "unknown"
	}
}
