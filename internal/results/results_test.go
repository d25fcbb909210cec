package results

import (
	"math/rand"
	"testing"
	"time"

	"campaignclient/internal/model"

	"github.com/stretchr/testify/require"
)

func TestWinner(t *testing.T) {
	tests := []struct {
		name  string
		votes []uint64
		want  *int
	}{
		{"tie at the top", []uint64{5, 5, 0}, nil},
		{"single leader", []uint64{5, 3, 2}, intPtr(0)},
		{"all zero", []uint64{0, 0, 0}, nil},
		{"leader last", []uint64{1, 2, 7}, intPtr(2)},
		{"single option with votes", []uint64{4}, intPtr(0)},
		{"single option without votes", []uint64{0}, nil},
		{"no options", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Winner(tt.votes))
		})
	}
}

func TestLeading(t *testing.T) {
	require.Equal(t, []int{0, 1}, Leading([]uint64{5, 5, 0}))
	require.Equal(t, []int{0, 1, 2}, Leading([]uint64{0, 0, 0}))
	require.Nil(t, Leading(nil))
}

func TestPercentage(t *testing.T) {
	require.Equal(t, 0, Percentage(3, 0))
	require.Equal(t, 33, Percentage(1, 3))
	require.Equal(t, 67, Percentage(2, 3))
	require.Equal(t, 50, Percentage(1, 2))
	require.Equal(t, 13, Percentage(1, 8)) // 12.5 rounds up
	require.Equal(t, 100, Percentage(9, 9))
}

func TestPercentagesSumWithinRoundingTolerance(t *testing.T) {
	// Independent rounding keeps the sum within one point of 100 for up to
	// three options; four options at x.5 each can already reach 102.
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(3)
		votes := make([]uint64, n)
		options := make([]string, n)
		for i := range votes {
			votes[i] = uint64(rng.Intn(50))
			options[i] = "o"
		}
		c := &model.Campaign{Questions: []model.Question{{Type: model.SingleChoice, Options: options, Votes: votes}}}
		q := Aggregate(c, nil, time.Now()).Questions[0]

		require.Len(t, q.Options, len(options))
		sum := 0
		for _, o := range q.Options {
			sum += o.Percentage
		}
		if q.TotalVotes == 0 {
			require.Equal(t, 0, sum)
		} else {
			require.GreaterOrEqual(t, sum, 99, "votes %v", votes)
			require.LessOrEqual(t, sum, 101, "votes %v", votes)
		}
	}
}

func TestAggregateCampaign(t *testing.T) {
	c := &model.Campaign{
		ID:             "0xc1",
		EndTime:        1_000,
		TotalResponses: 3,
		Questions: []model.Question{
			{Text: "Cuisine", Type: model.SingleChoice, Required: true, Options: []string{"thai", "pizza"}, Votes: []uint64{2, 1}},
			{Text: "Extras", Type: model.MultipleChoice, Options: []string{"drinks", "dessert"}, Votes: []uint64{2, 2}},
			{Text: "Comments", Type: model.Text},
		},
		Responses: []model.Response{
			{Respondent: "0xb1", Answers: map[int]string{0: "0", 2: "near the office"}},
			{Respondent: "0xb2", Answers: map[int]string{0: "1"}},
			{Respondent: "0xb3", Answers: map[int]string{0: "0", 2: "cheap please"}},
		},
	}
	attribution := Attribution{model.NormalizeAddress("0xb3"): "DigestB3"}

	res := Aggregate(c, attribution, time.UnixMilli(500))
	require.Equal(t, model.StatusActive, res.Status)
	require.Equal(t, uint64(3), res.TotalResponses)
	require.Len(t, res.Questions, 3)

	cuisine := res.Questions[0]
	require.Equal(t, uint64(3), cuisine.TotalVotes)
	require.Equal(t, 67, cuisine.Options[0].Percentage)
	require.Equal(t, 33, cuisine.Options[1].Percentage)
	require.Equal(t, intPtr(0), cuisine.Winner)

	extras := res.Questions[1]
	require.Nil(t, extras.Winner)
	require.Equal(t, []int{0, 1}, extras.Leading)

	comments := res.Questions[2]
	require.Equal(t, 2, comments.TextCount)
	require.Equal(t, "near the office", comments.Answers[0].Text)
	require.Equal(t, model.NormalizeAddress("0xb1"), comments.Answers[0].RespondentAddress)
	require.Equal(t, "", comments.Answers[0].TxDigest)
	require.Equal(t, "cheap please", comments.Answers[1].Text)
	require.Equal(t, "DigestB3", comments.Answers[1].TxDigest)
	require.Equal(t, model.ShortAddress("0xb3"), comments.Answers[1].Respondent)

	require.Equal(t, model.StatusEnded, Aggregate(c, nil, time.UnixMilli(1_000)).Status)
}

func intPtr(i int) *int { return &i }
