package model

type Registry struct {
	ID           string
	AllCampaigns []string
	ByCreator    map[string][]string
}

func (r *Registry) CampaignsOf(creator string) []string {
	if r == nil {
		return nil
	}
	return r.ByCreator[NormalizeAddress(creator)]
}

type SponsorshipLimits struct {
	MaxCampaigns uint64 `json:"maxCampaigns"`
	MaxResponses uint64 `json:"maxResponses"`
}

type SponsorshipUsage struct {
	Campaigns uint64 `json:"campaigns"`
	Responses uint64 `json:"responses"`
}

// SponsorshipStatus is a point-in-time snapshot from the sponsor service and
// must be re-read before every sponsored submission.
type SponsorshipStatus struct {
	Address            string            `json:"address"`
	Limits             SponsorshipLimits `json:"limits"`
	Used               SponsorshipUsage  `json:"used"`
	Remaining          SponsorshipUsage  `json:"remaining"`
	CanSponsorCampaign bool              `json:"canSponsorCampaign"`
	CanSponsorResponse bool              `json:"canSponsorResponse"`
}
