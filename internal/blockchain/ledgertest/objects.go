package ledgertest

import (
	"encoding/json"
	"slices"
	"strconv"

	"campaignclient/internal/model"
)

const Package = "0xfeed"

type moveStruct struct {
	Type   string         `json:"type,omitempty"`
	Fields map[string]any `json:"fields"`
}

func contents(values any) moveStruct {
	return moveStruct{Fields: map[string]any{"contents": values}}
}

func objectData(id, moveType string, fields map[string]any) string {
	raw, err := json.Marshal(map[string]any{
		"objectId": id,
		"type":     moveType,
		"content": map[string]any{
			"dataType": "moveObject",
			"type":     moveType,
			"fields":   fields,
		},
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// CampaignData renders c the way the ledger returns a campaign object.
func CampaignData(c *model.Campaign) string {
	questions := make([]moveStruct, len(c.Questions))
	for i, q := range c.Questions {
		votes := make([]string, len(q.Votes))
		for j, v := range q.Votes {
			votes[j] = strconv.FormatUint(v, 10)
		}
		options := q.Options
		if options == nil {
			options = []string{}
		}
		questions[i] = moveStruct{Type: Package + "::campaign::Question", Fields: map[string]any{
			"question_text":       q.Text,
			"question_type":       uint8(q.Type),
			"is_required":         q.Required,
			"options":             options,
			"option_votes":        votes,
			"text_response_count": strconv.FormatUint(q.TextResponseCount, 10),
		}}
	}

	responses := make([]moveStruct, len(c.Responses))
	for i, r := range c.Responses {
		keys := make([]int, 0, len(r.Answers))
		for k := range r.Answers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		entries := make([]moveStruct, len(keys))
		for j, k := range keys {
			entries[j] = moveStruct{Fields: map[string]any{"key": strconv.Itoa(k), "value": r.Answers[k]}}
		}
		responses[i] = moveStruct{Type: Package + "::campaign::Response", Fields: map[string]any{
			"respondent":    r.Respondent,
			"timestamp":     strconv.FormatInt(r.Timestamp, 10),
			"answers":       contents(entries),
			"response_seed": r.ResponseSeed,
		}}
	}

	whitelist := c.Whitelist
	if whitelist == nil {
		whitelist = []string{}
	}

	return objectData(c.ID, Package+"::campaign::Campaign", map[string]any{
		"id":              map[string]string{"id": c.ID},
		"creator":         c.Creator,
		"title":           c.Title,
		"description":     c.Description,
		"questions":       questions,
		"responses":       responses,
		"total_responses": strconv.FormatUint(c.TotalResponses, 10),
		"access_type":     uint8(c.AccessType),
		"whitelist":       contents(whitelist),
		"created_at":      strconv.FormatInt(c.CreatedAt, 10),
		"end_time":        strconv.FormatInt(c.EndTime, 10),
		"is_finalized":    c.Finalized,
		"is_encrypted":    c.Encrypted,
		"campaign_seed":   c.CampaignSeed,
	})
}

func RegistryData(r *model.Registry) string {
	creators := make([]string, 0, len(r.ByCreator))
	for creator := range r.ByCreator {
		creators = append(creators, creator)
	}
	slices.Sort(creators)
	entries := make([]moveStruct, len(creators))
	for i, creator := range creators {
		entries[i] = moveStruct{Fields: map[string]any{"key": creator, "value": r.ByCreator[creator]}}
	}
	all := r.AllCampaigns
	if all == nil {
		all = []string{}
	}
	return objectData(r.ID, Package+"::campaign::Registry", map[string]any{
		"id":                   map[string]string{"id": r.ID},
		"all_campaigns":        all,
		"campaigns_by_creator": contents(entries),
	})
}
