package storage

import "github.com/pkg/errors"

var ErrNotFound = errors.New("record not found")

type PasswordStore interface {
	GetPassword(campaignID, holder string) (*StoredPassword, error)
	SavePassword(password *StoredPassword) error
	DeletePassword(campaignID, holder string) error
}

type SubmissionJournal interface {
	GetSubmission(campaignID, respondent string) (*SubmittedResponse, error)
	HasSubmitted(campaignID, respondent string) (bool, error)
	RecordSubmission(submission *SubmittedResponse) error
	// RecordSubmissions inserts the entries that are not journaled yet and
	// leaves existing ones untouched.
	RecordSubmissions(submissions []*SubmittedResponse) error
}

type Storage interface {
	PasswordStore
	SubmissionJournal
	Close() error
}

type PasswordSource = string

const (
	SourceCreated    PasswordSource = "created"
	SourceManual     PasswordSource = "manual"
	SourceCreator    PasswordSource = "creator-derivation"
	SourceRespondent PasswordSource = "respondent-derivation"
)
