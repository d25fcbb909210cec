package decoder

import (
	"strings"

	"campaignclient/internal/model"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	CampaignTypeSuffix = "::campaign::Campaign"
	RegistryTypeSuffix = "::campaign::Registry"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindRegistry
	KindCampaign
)

func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindCampaign:
		return "campaign"
	default:
		return "unknown"
	}
}

// Object is the closed set of ledger objects the client understands. Exactly
// one of Registry or Campaign is set, matching Kind.
type Object struct {
	Kind     Kind
	ID       string
	Registry *model.Registry
	Campaign *model.Campaign
}

// KindOf classifies a Move type string.
func KindOf(moveType string) Kind {
	switch {
	case strings.HasSuffix(moveType, CampaignTypeSuffix):
		return KindCampaign
	case strings.HasSuffix(moveType, RegistryTypeSuffix):
		return KindRegistry
	default:
		return KindUnknown
	}
}

// Decode turns the data section of an object response into a tagged Object.
func Decode(raw []byte) (Object, error) {
	if !gjson.ValidBytes(raw) {
		return Object{}, &DecodeError{Reason: "payload is not valid JSON"}
	}
	data := gjson.ParseBytes(raw)
	id := data.Get("objectId").String()

	content := data.Get("content")
	if !content.Exists() {
		return Object{}, &DecodeError{ObjectID: id, Field: "content", Reason: "required field is absent"}
	}
	if dt := content.Get("dataType"); dt.Exists() && dt.String() != "moveObject" {
		return Object{}, &DecodeError{ObjectID: id, Field: "dataType", Reason: "not a move object: " + dt.String()}
	}

	moveType := content.Get("type").String()
	if moveType == "" {
		moveType = data.Get("type").String()
	}

	fields := content.Get("fields")
	if !fields.IsObject() {
		return Object{}, &DecodeError{ObjectID: id, Field: "fields", Reason: "required field is absent"}
	}

	switch KindOf(moveType) {
	case KindCampaign:
		c, err := decodeCampaignFields(fields)
		if err != nil {
			return Object{}, withObject(err, id)
		}
		if id == "" {
			id = c.ID
		}
		return Object{Kind: KindCampaign, ID: id, Campaign: c}, nil
	case KindRegistry:
		r, err := decodeRegistryFields(fields)
		if err != nil {
			return Object{}, withObject(err, id)
		}
		if id == "" {
			id = r.ID
		}
		return Object{Kind: KindRegistry, ID: id, Registry: r}, nil
	default:
		return Object{}, &DecodeError{ObjectID: id, Field: "type", Reason: "unrecognised object type " + moveType}
	}
}

func DecodeCampaign(raw []byte) (*model.Campaign, error) {
	obj, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if obj.Kind != KindCampaign {
		return nil, &DecodeError{ObjectID: obj.ID, Field: "type", Reason: "expected campaign, got " + obj.Kind.String()}
	}
	return obj.Campaign, nil
}

func DecodeRegistry(raw []byte) (*model.Registry, error) {
	obj, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if obj.Kind != KindRegistry {
		return nil, &DecodeError{ObjectID: obj.ID, Field: "type", Reason: "expected registry, got " + obj.Kind.String()}
	}
	return obj.Registry, nil
}

func withObject(err error, id string) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) && decodeErr.ObjectID == "" {
		decodeErr.ObjectID = id
	}
	return err
}

func decodeCampaignFields(fields gjson.Result) (*model.Campaign, error) {
	var (
		c   model.Campaign
		r   gjson.Result
		err error
	)

	if r, err = field(fields, "id"); err != nil {
		return nil, err
	}
	if c.ID, err = asID("id", r); err != nil {
		return nil, err
	}
	if r, err = field(fields, "creator"); err != nil {
		return nil, err
	}
	if c.Creator, err = asString("creator", r); err != nil {
		return nil, err
	}
	if r, err = field(fields, "title"); err != nil {
		return nil, err
	}
	if c.Title, err = asString("title", r); err != nil {
		return nil, err
	}
	if r, err = field(fields, "description"); err != nil {
		return nil, err
	}
	if c.Description, err = asString("description", r); err != nil {
		return nil, err
	}
	if r, err = field(fields, "end_time"); err != nil {
		return nil, err
	}
	endTime, err := asUint("end_time", r)
	if err != nil {
		return nil, err
	}
	c.EndTime = int64(endTime)

	if r, err = field(fields, "questions"); err != nil {
		return nil, err
	}
	questions, err := asList("questions", r)
	if err != nil {
		return nil, err
	}
	c.Questions = make([]model.Question, 0, len(questions))
	for _, q := range questions {
		question, err := decodeQuestionFields(structFields(q))
		if err != nil {
			return nil, err
		}
		c.Questions = append(c.Questions, *question)
	}

	if r = optional(fields, "responses"); r.Exists() {
		responses, err := asList("responses", r)
		if err != nil {
			return nil, err
		}
		c.Responses = make([]model.Response, 0, len(responses))
		for _, item := range responses {
			response, err := decodeResponseFields(structFields(item))
			if err != nil {
				return nil, err
			}
			c.Responses = append(c.Responses, *response)
		}
	}

	c.TotalResponses = uint64(len(c.Responses))
	if r = optional(fields, "total_responses"); r.Exists() {
		if c.TotalResponses, err = asUint("total_responses", r); err != nil {
			return nil, err
		}
	}
	if r = optional(fields, "created_at"); r.Exists() {
		createdAt, err := asUint("created_at", r)
		if err != nil {
			return nil, err
		}
		c.CreatedAt = int64(createdAt)
	}
	if r = optional(fields, "access_type"); r.Exists() {
		access, err := asUint("access_type", r)
		if err != nil {
			return nil, err
		}
		if access == uint64(model.AccessWhitelist) {
			c.AccessType = model.AccessWhitelist
		}
	}
	if r = optional(fields, "whitelist"); r.Exists() {
		if c.Whitelist, err = asStrings("whitelist", r); err != nil {
			return nil, err
		}
	}
	if r = optional(fields, "is_finalized"); r.Exists() {
		if c.Finalized, err = asBool("is_finalized", r); err != nil {
			return nil, err
		}
	}
	if r = optional(fields, "is_encrypted"); r.Exists() {
		if c.Encrypted, err = asBool("is_encrypted", r); err != nil {
			return nil, err
		}
	}
	if c.CampaignSeed, err = asOptionalBytes("campaign_seed", optional(fields, "campaign_seed")); err != nil {
		return nil, err
	}
	if len(c.CampaignSeed) > 0 {
		c.Encrypted = true
	}

	return &c, nil
}

// DecodeQuestion decodes the fields of a single Question struct.
func DecodeQuestion(raw []byte) (*model.Question, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &DecodeError{Reason: "payload is not valid JSON"}
	}
	return decodeQuestionFields(structFields(gjson.ParseBytes(raw)))
}

func decodeQuestionFields(fields gjson.Result) (*model.Question, error) {
	var (
		q   model.Question
		r   gjson.Result
		err error
	)

	if r, err = field(fields, "question_text"); err != nil {
		return nil, err
	}
	if q.Text, err = asString("question_text", r); err != nil {
		return nil, err
	}
	if r, err = field(fields, "question_type"); err != nil {
		return nil, err
	}
	tag, err := asUint("question_type", r)
	if err != nil {
		return nil, err
	}
	q.Type = model.QuestionTypeFromTag(tag)

	if r = optional(fields, "is_required"); r.Exists() {
		if q.Required, err = asBool("is_required", r); err != nil {
			return nil, err
		}
	}
	if r = optional(fields, "options"); r.Exists() {
		if q.Options, err = asStrings("options", r); err != nil {
			return nil, err
		}
	}
	if r = optional(fields, "option_votes"); r.Exists() {
		if q.Votes, err = asUints("option_votes", r); err != nil {
			return nil, err
		}
	} else if len(q.Options) > 0 {
		return nil, missing("option_votes")
	}
	if !q.VotesConsistent() {
		return nil, invalid("option_votes", "vote counters do not match options")
	}
	if r = optional(fields, "text_response_count"); r.Exists() {
		if q.TextResponseCount, err = asUint("text_response_count", r); err != nil {
			return nil, err
		}
	}
	return &q, nil
}

// DecodeResponse decodes the fields of a single Response struct.
func DecodeResponse(raw []byte) (*model.Response, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &DecodeError{Reason: "payload is not valid JSON"}
	}
	return decodeResponseFields(structFields(gjson.ParseBytes(raw)))
}

func decodeResponseFields(fields gjson.Result) (*model.Response, error) {
	var (
		resp model.Response
		r    gjson.Result
		err  error
	)

	if r, err = field(fields, "respondent"); err != nil {
		return nil, err
	}
	if resp.Respondent, err = asString("respondent", r); err != nil {
		return nil, err
	}
	if r = optional(fields, "timestamp"); r.Exists() {
		ts, err := asUint("timestamp", r)
		if err != nil {
			return nil, err
		}
		resp.Timestamp = int64(ts)
	}
	if r, err = field(fields, "answers"); err != nil {
		return nil, err
	}
	entries, err := asVecMap("answers", r)
	if err != nil {
		return nil, err
	}
	resp.Answers = make(map[int]string, len(entries))
	for _, entry := range entries {
		index, err := asUint("answers.key", entry.Key)
		if err != nil {
			return nil, err
		}
		value, err := asString("answers.value", entry.Value)
		if err != nil {
			return nil, err
		}
		resp.Answers[int(index)] = value
	}
	if resp.ResponseSeed, err = asOptionalBytes("response_seed", optional(fields, "response_seed")); err != nil {
		return nil, err
	}
	return &resp, nil
}

func decodeRegistryFields(fields gjson.Result) (*model.Registry, error) {
	var (
		reg model.Registry
		r   gjson.Result
		err error
	)

	if r, err = field(fields, "id"); err != nil {
		return nil, err
	}
	if reg.ID, err = asID("id", r); err != nil {
		return nil, err
	}
	if r, err = field(fields, "all_campaigns"); err != nil {
		return nil, err
	}
	if reg.AllCampaigns, err = asStrings("all_campaigns", r); err != nil {
		return nil, err
	}

	reg.ByCreator = make(map[string][]string)
	if r = optional(fields, "campaigns_by_creator"); r.Exists() {
		entries, err := asVecMap("campaigns_by_creator", r)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			creator, err := asString("campaigns_by_creator.key", entry.Key)
			if err != nil {
				return nil, err
			}
			ids, err := asStrings("campaigns_by_creator.value", entry.Value)
			if err != nil {
				return nil, err
			}
			key := model.NormalizeAddress(creator)
			reg.ByCreator[key] = append(reg.ByCreator[key], ids...)
		}
	}
	return &reg, nil
}
