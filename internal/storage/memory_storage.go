package storage

import (
	"sync"

	"campaignclient/internal/model"
)

type entryKey struct {
	campaignID string
	address    string
}

func keyOf(campaignID, address string) entryKey {
	return entryKey{campaignID: campaignID, address: model.NormalizeAddress(address)}
}

// MemoryStorage keeps everything in process memory. It backs tests and
// sessions started without a database path.
type MemoryStorage struct {
	mu          sync.RWMutex
	passwords   map[entryKey]StoredPassword
	submissions map[entryKey]SubmittedResponse
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		passwords:   make(map[entryKey]StoredPassword),
		submissions: make(map[entryKey]SubmittedResponse),
	}
}

func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) GetPassword(campaignID, holder string) (*StoredPassword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	password, ok := s.passwords[keyOf(campaignID, holder)]
	if !ok {
		return nil, ErrNotFound
	}
	return &password, nil
}

func (s *MemoryStorage) SavePassword(password *StoredPassword) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *password
	row.Holder = model.NormalizeAddress(row.Holder)
	s.passwords[keyOf(row.CampaignID, row.Holder)] = row
	return nil
}

func (s *MemoryStorage) DeletePassword(campaignID, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.passwords, keyOf(campaignID, holder))
	return nil
}

func (s *MemoryStorage) GetSubmission(campaignID, respondent string) (*SubmittedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[keyOf(campaignID, respondent)]
	if !ok {
		return nil, ErrNotFound
	}
	return &submission, nil
}

func (s *MemoryStorage) HasSubmitted(campaignID, respondent string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.submissions[keyOf(campaignID, respondent)]
	return ok, nil
}

func (s *MemoryStorage) RecordSubmission(submission *SubmittedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *submission
	row.Respondent = model.NormalizeAddress(row.Respondent)
	s.submissions[keyOf(row.CampaignID, row.Respondent)] = row
	return nil
}

func (s *MemoryStorage) RecordSubmissions(submissions []*SubmittedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, submission := range submissions {
		key := keyOf(submission.CampaignID, submission.Respondent)
		if _, ok := s.submissions[key]; ok {
			continue
		}
		row := *submission
		row.Respondent = key.address
		s.submissions[key] = row
	}
	return nil
}
