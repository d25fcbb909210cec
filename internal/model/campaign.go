package model

import (
	"strings"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

type AccessType uint8

const (
	AccessOpen      AccessType = 0
	AccessWhitelist AccessType = 1
)

func (a AccessType) String() string {
	if a == AccessWhitelist {
		return "whitelist"
	}
	return "open"
}

type QuestionType uint8

const (
	SingleChoice   QuestionType = 0
	MultipleChoice QuestionType = 1
	Text           QuestionType = 2
)

// QuestionTypeFromTag maps an on-chain tag to a question type. Unknown tags
// fall back to Text so campaigns created by newer contracts still render.
func QuestionTypeFromTag(tag uint64) QuestionType {
	switch tag {
	case 0:
		return SingleChoice
	case 1:
		return MultipleChoice
	default:
		return Text
	}
}

func (q QuestionType) String() string {
	switch q {
	case SingleChoice:
		return "single-choice"
	case MultipleChoice:
		return "multiple-choice"
	default:
		return "text"
	}
}

func (q QuestionType) IsChoice() bool {
	return q == SingleChoice || q == MultipleChoice
}

type Question struct {
	Text              string
	Type              QuestionType
	Required          bool
	Options           []string
	Votes             []uint64
	TextResponseCount uint64
}

// VotesConsistent reports whether every option has exactly one vote counter.
func (q *Question) VotesConsistent() bool {
	return len(q.Votes) == len(q.Options)
}

type Response struct {
	Respondent string
	Timestamp  int64
	// Answers is keyed by zero-based question index.
	Answers      map[int]string
	ResponseSeed []byte
}

type Campaign struct {
	ID             string
	Creator        string
	Title          string
	Description    string
	Questions      []Question
	Responses      []Response
	TotalResponses uint64
	AccessType     AccessType
	Whitelist      []string
	CreatedAt      int64
	EndTime        int64
	Finalized      bool
	Encrypted      bool
	CampaignSeed   []byte
}

// Status is derived from the end time (unix milliseconds) and the finalized flag.
func (c *Campaign) Status(now time.Time) Status {
	if c.Finalized || now.UnixMilli() >= c.EndTime {
		return StatusEnded
	}
	return StatusActive
}

func (c *Campaign) IsCreator(address string) bool {
	return address != "" && NormalizeAddress(address) == NormalizeAddress(c.Creator)
}

func (c *Campaign) ResponseOf(address string) (*Response, bool) {
	normalized := NormalizeAddress(address)
	for i := range c.Responses {
		if NormalizeAddress(c.Responses[i].Respondent) == normalized {
			return &c.Responses[i], true
		}
	}
	return nil, false
}

func (c *Campaign) HasResponded(address string) bool {
	_, ok := c.ResponseOf(address)
	return ok
}

// CanRespond applies the access mode only; end time and duplicates are checked by callers.
func (c *Campaign) CanRespond(address string) bool {
	if c.AccessType != AccessWhitelist {
		return true
	}
	normalized := NormalizeAddress(address)
	for _, allowed := range c.Whitelist {
		if NormalizeAddress(allowed) == normalized {
			return true
		}
	}
	return false
}

// NormalizeAddress lower-cases an address and left-pads it to 32 bytes of hex.
func NormalizeAddress(address string) string {
	a := strings.ToLower(strings.TrimSpace(address))
	a = strings.TrimPrefix(a, "0x")
	if a == "" {
		return ""
	}
	if len(a) < 64 {
		a = strings.Repeat("0", 64-len(a)) + a
	}
	return "0x" + a
}

// ShortAddress renders 0x1234…abcd for display.
func ShortAddress(address string) string {
	a := NormalizeAddress(address)
	if len(a) <= 12 {
		return a
	}
	return a[:6] + "…" + a[len(a)-4:]
}
