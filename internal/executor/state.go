package executor

type State string

const (
	StateBuilt            State = "built"
	StateSponsorRequested State = "sponsor-requested"
	StateSponsorApproved  State = "sponsor-approved"
	StateSponsorRejected  State = "sponsor-rejected"
	StateUserSigned       State = "user-signed"
	StateSubmitted        State = "submitted"
	StateConfirmed        State = "confirmed"
	StateConfirmFailed    State = "confirm-failed"
)

// Trail is the ordered list of states one submission went through.
type Trail []State

func (t Trail) Last() State {
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func (t Trail) Reached(s State) bool {
	for _, state := range t {
		if state == s {
			return true
		}
	}
	return false
}
