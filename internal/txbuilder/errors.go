package txbuilder

import "fmt"

// BuildError means the network configuration needed to address the campaign
// package is unavailable. It is fatal to the current action.
type BuildError struct {
	Network string
	Reason  string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build transaction for network %q: %s", e.Network, e.Reason)
}

// InputError rejects campaign fields or answers that cannot be encoded.
type InputError struct {
	Question int
	Reason   string
}

func (e *InputError) Error() string {
	if e.Question >= 0 {
		return fmt.Sprintf("question %d: %s", e.Question, e.Reason)
	}
	return e.Reason
}

func inputErr(reason string) *InputError {
	return &InputError{Question: -1, Reason: reason}
}

func questionErr(index int, format string, args ...any) *InputError {
	return &InputError{Question: index, Reason: fmt.Sprintf(format, args...)}
}
