package campaigns

import "fmt"

type Precondition string

const (
	AlreadyResponded Precondition = "already-responded"
	CampaignEnded    Precondition = "campaign-ended"
	NotWhitelisted   Precondition = "not-whitelisted"
)

// PreconditionError rejects a submission locally before anything is sent.
type PreconditionError struct {
	CampaignID string
	Reason     Precondition
}

func (e *PreconditionError) Error() string {
	switch e.Reason {
	case AlreadyResponded:
		return fmt.Sprintf("campaign %s: you have already responded", e.CampaignID)
	case CampaignEnded:
		return fmt.Sprintf("campaign %s: campaign has ended", e.CampaignID)
	case NotWhitelisted:
		return fmt.Sprintf("campaign %s: address is not on the whitelist", e.CampaignID)
	default:
		return fmt.Sprintf("campaign %s: %s", e.CampaignID, e.Reason)
	}
}
