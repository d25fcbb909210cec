package recovery

import "fmt"

type Source string

const (
	SourcePlain      Source = "plain"
	SourceStored     Source = "stored"
	SourceManual     Source = "manual"
	SourceCreator    Source = "creator"
	SourceRespondent Source = "respondent"
)

type LockReason string

const (
	// LockNoSource: no stored password and no derivation path applies.
	LockNoSource LockReason = "no-source"
	// LockWrongPassword: the stored password failed to decrypt and was evicted.
	LockWrongPassword LockReason = "wrong-password"
	// LockDerivationMismatch: a derived password failed to decrypt.
	LockDerivationMismatch LockReason = "derivation-mismatch"
)

// RecoveryFailure explains why a campaign stays locked. It is informational;
// the user is not required to see it.
type RecoveryFailure struct {
	CampaignID string
	Reason     LockReason
	Err        error
}

func (e *RecoveryFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("campaign %s stays locked (%s): %v", e.CampaignID, e.Reason, e.Err)
	}
	return fmt.Sprintf("campaign %s stays locked (%s)", e.CampaignID, e.Reason)
}

func (e *RecoveryFailure) Unwrap() error {
	return e.Err
}

// Outcome is the display state of one campaign after a recovery run.
type Outcome struct {
	CampaignID  string
	Unlocked    bool
	Source      Source
	Title       string
	Description string
	// Password is the validated password; empty for plain campaigns.
	Password string
	Failure  *RecoveryFailure
}

func (o *Outcome) LockReason() LockReason {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Reason
}
