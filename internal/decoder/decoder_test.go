package decoder

import (
	"strings"
	"testing"

	"campaignclient/internal/model"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const campaignPayload = `{
  "objectId": "0xc1",
  "version": "12",
  "type": "0xfeed::campaign::Campaign",
  "content": {
    "dataType": "moveObject",
    "type": "0xfeed::campaign::Campaign",
    "hasPublicTransfer": false,
    "fields": {
      "id": {"id": "0xc1"},
      "creator": "0xa1",
      "title": "Lunch",
      "description": "Where do we eat?",
      "questions": [
        {"type": "0xfeed::campaign::Question", "fields": {
          "question_text": "Cuisine", "question_type": 0, "is_required": true,
          "options": ["thai", "pizza", "sushi"], "option_votes": ["2", "1", "0"],
          "text_response_count": "0", "introduced_later": {"x": 1}}},
        {"type": "0xfeed::campaign::Question", "fields": {
          "question_text": "Extras", "question_type": "1", "is_required": false,
          "options": ["drinks", "dessert"], "option_votes": [1, 3]}},
        {"type": "0xfeed::campaign::Question", "fields": {
          "question_text": "Comments", "question_type": 2, "is_required": false,
          "options": [], "option_votes": [], "text_response_count": "1"}}
      ],
      "responses": [
        {"type": "0xfeed::campaign::Response", "fields": {
          "respondent": "0xb2", "timestamp": "1700000000500",
          "answers": {"type": "0x2::vec_map::VecMap<u64, 0x1::string::String>", "fields": {"contents": [
            {"type": "0x2::vec_map::Entry", "fields": {"key": "0", "value": "0"}},
            {"type": "0x2::vec_map::Entry", "fields": {"key": "1", "value": "0,1"}},
            {"type": "0x2::vec_map::Entry", "fields": {"key": "2", "value": "near the office"}}
          ]}},
          "response_seed": [1, 2, 3]}}
      ],
      "total_responses": "3",
      "access_type": 1,
      "whitelist": {"type": "0x2::vec_set::VecSet<address>", "fields": {"contents": ["0xb2", "0xb3"]}},
      "created_at": "1700000000000",
      "end_time": "1800000000000",
      "is_finalized": false,
      "is_encrypted": false,
      "campaign_seed": null
    }
  }
}`

const registryPayload = `{
  "objectId": "0xr1",
  "content": {
    "dataType": "moveObject",
    "type": "0xfeed::campaign::Registry",
    "fields": {
      "id": {"id": "0xr1"},
      "all_campaigns": ["0xc1", "0xc2", "0xc3"],
      "campaigns_by_creator": {"fields": {"contents": [
        {"fields": {"key": "0xa1", "value": ["0xc1", "0xc3"]}},
        {"fields": {"key": "0xA2", "value": ["0xc2"]}}
      ]}}
    }
  }
}`

func TestDecodeCampaign(t *testing.T) {
	c, err := DecodeCampaign([]byte(campaignPayload))
	require.NoError(t, err)

	require.Equal(t, "0xc1", c.ID)
	require.Equal(t, "0xa1", c.Creator)
	require.Equal(t, "Lunch", c.Title)
	require.Equal(t, int64(1_800_000_000_000), c.EndTime)
	require.Equal(t, int64(1_700_000_000_000), c.CreatedAt)
	require.Equal(t, uint64(3), c.TotalResponses)
	require.Equal(t, model.AccessWhitelist, c.AccessType)
	require.Equal(t, []string{"0xb2", "0xb3"}, c.Whitelist)
	require.False(t, c.Encrypted)
	require.Nil(t, c.CampaignSeed)

	require.Len(t, c.Questions, 3)
	require.Equal(t, model.SingleChoice, c.Questions[0].Type)
	require.True(t, c.Questions[0].Required)
	require.Equal(t, []uint64{2, 1, 0}, c.Questions[0].Votes)
	require.Equal(t, model.MultipleChoice, c.Questions[1].Type)
	require.Equal(t, []uint64{1, 3}, c.Questions[1].Votes)
	require.Equal(t, model.Text, c.Questions[2].Type)
	require.Equal(t, uint64(1), c.Questions[2].TextResponseCount)

	require.Len(t, c.Responses, 1)
	resp := c.Responses[0]
	require.Equal(t, "0xb2", resp.Respondent)
	require.Equal(t, int64(1_700_000_000_500), resp.Timestamp)
	require.Equal(t, map[int]string{0: "0", 1: "0,1", 2: "near the office"}, resp.Answers)
	require.Equal(t, []byte{1, 2, 3}, resp.ResponseSeed)
}

func TestDecodeUnknownQuestionTagFallsBackToText(t *testing.T) {
	q, err := DecodeQuestion([]byte(`{"fields": {"question_text": "Future", "question_type": 9}}`))
	require.NoError(t, err)
	require.Equal(t, model.Text, q.Type)
}

func TestDecodeEncryptedCampaignSeed(t *testing.T) {
	payload := strings.Replace(campaignPayload, `"campaign_seed": null`, `"campaign_seed": "AQID"`, 1)
	c, err := DecodeCampaign([]byte(payload))
	require.NoError(t, err)
	require.True(t, c.Encrypted)
	require.Equal(t, []byte{1, 2, 3}, c.CampaignSeed)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"invalid json", `{"content":`, ""},
		{"missing content", `{"objectId":"0xc1"}`, "content"},
		{"package object", `{"objectId":"0xp","content":{"dataType":"package","disassembled":{}}}`, "dataType"},
		{"unknown type", strings.Replace(campaignPayload, "::campaign::Campaign", "::campaign::Ballot", 2), "type"},
		{"missing title", strings.Replace(campaignPayload, `"title": "Lunch",`, "", 1), "title"},
		{"bad end time", strings.Replace(campaignPayload, `"end_time": "1800000000000"`, `"end_time": "soon"`, 1), "end_time"},
		{"votes mismatch", strings.Replace(campaignPayload, `"option_votes": ["2", "1", "0"]`, `"option_votes": ["2", "1"]`, 1), "option_votes"},
		{"missing votes", strings.Replace(campaignPayload, `"option_votes": [1, 3]`, `"other": [1, 3]`, 1), "option_votes"},
		{"bad answers", strings.Replace(campaignPayload, `{"key": "0", "value": "0"}`, `{"value": "0"}`, 1), "answers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "got %T", err)
			require.Equal(t, tt.field, decodeErr.Field)
		})
	}
}

func TestDecodeErrorCarriesObjectID(t *testing.T) {
	_, err := Decode([]byte(strings.Replace(campaignPayload, `"creator": "0xa1",`, "", 1)))
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	require.Equal(t, "0xc1", decodeErr.ObjectID)
	require.Contains(t, decodeErr.Error(), "creator")
}

func TestDecodeRegistry(t *testing.T) {
	r, err := DecodeRegistry([]byte(registryPayload))
	require.NoError(t, err)
	require.Equal(t, "0xr1", r.ID)
	require.Equal(t, []string{"0xc1", "0xc2", "0xc3"}, r.AllCampaigns)
	require.Equal(t, []string{"0xc1", "0xc3"}, r.CampaignsOf("0xa1"))
	require.Equal(t, []string{"0xc2"}, r.CampaignsOf("0xa2"))

	_, err = DecodeCampaign([]byte(registryPayload))
	require.Error(t, err)
}

func TestDecodeResponseMinimal(t *testing.T) {
	r, err := DecodeResponse([]byte(`{"respondent":"0xb9","answers":{"contents":[{"key":3,"value":"x"}]}}`))
	require.NoError(t, err)
	require.Equal(t, map[int]string{3: "x"}, r.Answers)
	require.Nil(t, r.ResponseSeed)
}
