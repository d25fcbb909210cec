package results

import (
	"math"
	"time"

	"campaignclient/internal/model"
)

type OptionResult struct {
	Label      string
	Votes      uint64
	Percentage int
}

type TextAnswer struct {
	Text              string
	Respondent        string
	RespondentAddress string
	// TxDigest is empty until the response transaction has been attributed.
	TxDigest string
}

type QuestionResult struct {
	Index    int
	Text     string
	Type     model.QuestionType
	Required bool

	Options    []OptionResult
	TotalVotes uint64
	Leading    []int
	// Winner is set only when exactly one option leads with a non-zero count.
	Winner *int

	TextCount int
	Answers   []TextAnswer
}

type CampaignResults struct {
	CampaignID     string
	Status         model.Status
	TotalResponses uint64
	Questions      []QuestionResult
}

// Attribution maps a normalized respondent address to its response transaction digest.
type Attribution map[string]string

func (a Attribution) digestOf(address string) string {
	if a == nil {
		return ""
	}
	return a[model.NormalizeAddress(address)]
}

func Aggregate(c *model.Campaign, attribution Attribution, now time.Time) *CampaignResults {
	out := &CampaignResults{
		CampaignID:     c.ID,
		Status:         c.Status(now),
		TotalResponses: c.TotalResponses,
		Questions:      make([]QuestionResult, 0, len(c.Questions)),
	}
	for i := range c.Questions {
		q := &c.Questions[i]
		result := QuestionResult{
			Index:    i,
			Text:     q.Text,
			Type:     q.Type,
			Required: q.Required,
		}
		if q.Type.IsChoice() {
			aggregateChoice(q, &result)
		} else {
			aggregateText(c, i, attribution, &result)
		}
		out.Questions = append(out.Questions, result)
	}
	return out
}

func aggregateChoice(q *model.Question, result *QuestionResult) {
	votes := q.Votes
	if !q.VotesConsistent() {
		votes = make([]uint64, len(q.Options))
		copy(votes, q.Votes)
	}

	var total uint64
	for _, v := range votes {
		total += v
	}

	result.TotalVotes = total
	result.Options = make([]OptionResult, len(q.Options))
	for i, label := range q.Options {
		result.Options[i] = OptionResult{
			Label:      label,
			Votes:      votes[i],
			Percentage: Percentage(votes[i], total),
		}
	}
	result.Leading = Leading(votes)
	result.Winner = Winner(votes)
}

func aggregateText(c *model.Campaign, index int, attribution Attribution, result *QuestionResult) {
	for _, resp := range c.Responses {
		text, ok := resp.Answers[index]
		if !ok || text == "" {
			continue
		}
		result.Answers = append(result.Answers, TextAnswer{
			Text:              text,
			Respondent:        model.ShortAddress(resp.Respondent),
			RespondentAddress: model.NormalizeAddress(resp.Respondent),
			TxDigest:          attribution.digestOf(resp.Respondent),
		})
	}
	result.TextCount = len(result.Answers)
}

// Percentage rounds half away from zero; an empty tally yields 0.
func Percentage(votes, total uint64) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(votes)/float64(total)*100 + 0.5))
}

// Leading returns the indices holding the maximum count, in option order.
func Leading(votes []uint64) []int {
	if len(votes) == 0 {
		return nil
	}
	var top uint64
	for _, v := range votes {
		top = max(top, v)
	}
	leading := make([]int, 0, 1)
	for i, v := range votes {
		if v == top {
			leading = append(leading, i)
		}
	}
	return leading
}

// Winner declares a winner only when exactly one option leads and its count is
// non-zero. Ties, including a tie at zero, have no winner.
func Winner(votes []uint64) *int {
	leading := Leading(votes)
	if len(leading) != 1 || votes[leading[0]] == 0 {
		return nil
	}
	winner := leading[0]
	return &winner
}
