package storage

// StoredPassword is a campaign password that has already decrypted the
// campaign's text once. Unvalidated passwords are never persisted.
type StoredPassword struct {
	CampaignID string `gorm:"primaryKey"`
	Holder     string `gorm:"primaryKey"`
	Password   string `gorm:"not null"`
	Source     string `gorm:"not null"`
	UpdatedAt  int64  `gorm:"autoUpdateTime:milli"`
}

// SubmittedResponse records that Respondent has a response on CampaignID,
// either submitted from this client or observed on the ledger.
type SubmittedResponse struct {
	CampaignID  string `gorm:"primaryKey"`
	Respondent  string `gorm:"primaryKey"`
	TxDigest    string `gorm:"default:''"`
	SubmittedAt int64  `gorm:"default:0"`
}
