package decoder

import "fmt"

// DecodeError reports a ledger payload that does not fit the domain model.
// Callers skip the offending object; a batch is never aborted for it.
type DecodeError struct {
	ObjectID string
	Field    string
	Reason   string
}

func (e *DecodeError) Error() string {
	switch {
	case e.ObjectID != "" && e.Field != "":
		return fmt.Sprintf("decode object %s: field %q: %s", e.ObjectID, e.Field, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("decode: field %q: %s", e.Field, e.Reason)
	case e.ObjectID != "":
		return fmt.Sprintf("decode object %s: %s", e.ObjectID, e.Reason)
	default:
		return "decode: " + e.Reason
	}
}

func missing(field string) *DecodeError {
	return &DecodeError{Field: field, Reason: "required field is absent"}
}

func invalid(field, reason string) *DecodeError {
	return &DecodeError{Field: field, Reason: reason}
}
