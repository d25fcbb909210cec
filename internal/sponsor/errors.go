package sponsor

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	CodeQuotaExceeded   = "quota_exceeded"
	CodeInsufficientGas = "insufficient_gas"
	CodeUnavailable     = "sponsor_unavailable"
	CodeUnknown         = "unknown"
)

// SponsorError is a terminal refusal by the sponsor service. It is surfaced
// to the user verbatim and never retried automatically.
type SponsorError struct {
	StatusCode int
	Code       string
	Message    string
	// Remaining is the quota left as reported by the service, when present.
	Remaining *uint64
}

func (e *SponsorError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sponsor refused (%s)", e.Code)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Remaining != nil {
		fmt.Fprintf(&b, ", %d remaining", *e.Remaining)
	}
	return b.String()
}

func (e *SponsorError) QuotaExceeded() bool {
	return e.Code == CodeQuotaExceeded
}

// parseError reads {error, code, remaining}; bodies that are not JSON become
// the message.
func parseError(status int, body []byte) *SponsorError {
	e := &SponsorError{StatusCode: status, Code: CodeUnknown}
	if !gjson.ValidBytes(body) {
		e.Message = strings.TrimSpace(string(body))
		return e
	}
	parsed := gjson.ParseBytes(body)
	if code := parsed.Get("code").String(); code != "" {
		e.Code = code
	}
	e.Message = parsed.Get("error").String()
	if e.Message == "" {
		e.Message = parsed.Get("message").String()
	}
	if remaining := parsed.Get("remaining"); remaining.Type == gjson.Number {
		n := remaining.Uint()
		e.Remaining = &n
	}
	return e
}
