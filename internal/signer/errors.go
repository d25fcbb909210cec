package signer

import (
	"strings"

	"campaignclient/internal/blockchain"

	"github.com/pkg/errors"
)

type Kind int

const (
	Transient Kind = iota
	SessionExpired
	Invalid
)

func (k Kind) String() string {
	switch k {
	case SessionExpired:
		return "session-expired"
	case Invalid:
		return "invalid"
	default:
		return "transient"
	}
}

// SignatureError tells the caller whether to retry (Transient) or ask the
// user to authenticate again (SessionExpired, Invalid).
type SignatureError struct {
	Kind Kind
	Err  error
}

func (e *SignatureError) Error() string {
	return "signature " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

func (e *SignatureError) NeedsReauthentication() bool {
	return e.Kind == SessionExpired || e.Kind == Invalid
}

var (
	expiryMarkers  = []string{"session expired", "expired session", "zklogin max epoch", "signature expired", "maxepoch"}
	invalidMarkers = []string{"invalid signature", "invalid user signature", "signature is not valid", "failed to verify"}
)

// Classify maps signing and submission failures onto the signature taxonomy.
// It returns nil for errors unrelated to signatures.
func Classify(err error) *SignatureError {
	if err == nil {
		return nil
	}
	var sigErr *SignatureError
	if errors.As(err, &sigErr) {
		return sigErr
	}
	message := strings.ToLower(err.Error())
	for _, marker := range expiryMarkers {
		if strings.Contains(message, marker) {
			return &SignatureError{Kind: SessionExpired, Err: err}
		}
	}
	for _, marker := range invalidMarkers {
		if strings.Contains(message, marker) {
			return &SignatureError{Kind: Invalid, Err: err}
		}
	}
	if blockchain.IsTransportError(err) {
		return &SignatureError{Kind: Transient, Err: err}
	}
	return nil
}
