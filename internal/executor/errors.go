package executor

import (
	"fmt"
	"regexp"
	"strconv"
)

// ExecutionError reports a submission that did not confirm.
//
// Executed is set when the ledger ran the transaction and reported failure;
// nothing will change by retrying. Unknown is set when every execution call
// failed in transport: the transaction may or may not have landed, and
// Digest can be used to check.
type ExecutionError struct {
	Digest   string
	Executed bool
	Unknown  bool
	Status   string
	// AbortCode and Function are filled when the failure is a Move abort.
	AbortCode *uint64
	Function  string
	// AlreadyResponded marks the duplicate-response abort of submit_response.
	AlreadyResponded bool
	Err              error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.AlreadyResponded:
		return "execution failed: a response from this address is already recorded"
	case e.Executed:
		return fmt.Sprintf("execution of %s failed: %s", e.Digest, e.Status)
	case e.Unknown:
		return fmt.Sprintf("execution of %s unconfirmed: %v", e.Digest, e.Err)
	default:
		return fmt.Sprintf("execution rejected: %v", e.Err)
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// LookupTimeout means the transaction succeeded but the created object could
// not be identified in time. It never fails the submission.
type LookupTimeout struct {
	Digest   string
	Attempts int
	Err      error
}

func (e *LookupTimeout) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("created object of %s not found after %d attempts: %v", e.Digest, e.Attempts, e.Err)
	}
	return fmt.Sprintf("created object of %s not found after %d attempts", e.Digest, e.Attempts)
}

func (e *LookupTimeout) Unwrap() error {
	return e.Err
}

var moveAbortPattern = regexp.MustCompile(`MoveAbort\(.*?function_name: Some\("(\w+)"\) \}, (\d+)\)`)

// parseMoveAbort extracts the aborting function and code from an effects
// status error.
func parseMoveAbort(status string) (string, *uint64) {
	m := moveAbortPattern.FindStringSubmatch(status)
	if m == nil {
		return "", nil
	}
	code, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return m[1], nil
	}
	return m[1], &code
}
