package txbuilder

import (
	"strings"

	"campaignclient/internal/blockchain"
	"campaignclient/internal/model"
)

const (
	campaignModule = "campaign"

	createCampaignFunction          = "create_campaign"
	createEncryptedCampaignFunction = "create_encrypted_campaign"
	submitResponseFunction          = "submit_response"

	DefaultGasBudget uint64 = 50_000_000
)

type QuestionInput struct {
	Text     string
	Type     model.QuestionType
	Required bool
	Options  []string
}

type CreateCampaignInput struct {
	Title       string
	Description string
	Questions   []QuestionInput
	// EndTime is an absolute unix timestamp in milliseconds.
	EndTime    int64
	AccessType model.AccessType
	Whitelist  []string
	// CampaignSeed is set for encrypted campaigns; Title and Description are
	// then expected to be ciphertext already.
	CampaignSeed []byte
}

type Builder struct {
	network   blockchain.NetworkConfig
	gasBudget uint64
}

func New(network blockchain.NetworkConfig) *Builder {
	return &Builder{network: network, gasBudget: DefaultGasBudget}
}

func (b *Builder) Network() blockchain.NetworkConfig {
	return b.network
}

func (b *Builder) target(function string) (string, error) {
	if _, err := blockchain.ParseNetwork(string(b.network.Name)); err != nil {
		return "", &BuildError{Network: string(b.network.Name), Reason: "unknown network"}
	}
	if strings.TrimSpace(b.network.PackageID) == "" {
		return "", &BuildError{Network: string(b.network.Name), Reason: "campaign package id is not configured"}
	}
	return b.network.PackageID + "::" + campaignModule + "::" + function, nil
}

// Flatten concatenates all options in question order then option order and
// returns the per-question option counts (0 for text questions).
func Flatten(questions []QuestionInput) ([]string, []uint64) {
	options := make([]string, 0)
	counts := make([]uint64, len(questions))
	for i, q := range questions {
		if !q.Type.IsChoice() {
			continue
		}
		options = append(options, q.Options...)
		counts[i] = uint64(len(q.Options))
	}
	return options, counts
}

// Unflatten regroups a flattened option vector by its count vector.
func Unflatten(options []string, counts []uint64) ([][]string, error) {
	grouped := make([][]string, len(counts))
	total := uint64(len(options))
	offset := uint64(0)
	for i, c := range counts {
		if c > total-offset {
			return nil, inputErr("option counts do not add up to the option vector")
		}
		grouped[i] = append([]string{}, options[offset:offset+c]...)
		offset += c
	}
	if offset != total {
		return nil, inputErr("option counts do not add up to the option vector")
	}
	return grouped, nil
}

func validateCreate(input CreateCampaignInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return inputErr("title is required")
	}
	if len(input.Questions) == 0 {
		return inputErr("at least one question is required")
	}
	if input.EndTime <= 0 {
		return inputErr("end time is required")
	}
	if input.AccessType == model.AccessWhitelist && len(input.Whitelist) == 0 {
		return inputErr("whitelist access needs at least one address")
	}
	for i, q := range input.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return questionErr(i, "text is required")
		}
		if q.Type.IsChoice() && len(q.Options) < 2 {
			return questionErr(i, "choice questions need at least two options")
		}
	}
	return nil
}

func (b *Builder) CreateCampaign(input CreateCampaignInput) (*Transaction, error) {
	function := createCampaignFunction
	if len(input.CampaignSeed) > 0 {
		function = createEncryptedCampaignFunction
	}
	target, err := b.target(function)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.network.RegistryID) == "" {
		return nil, &BuildError{Network: string(b.network.Name), Reason: "campaign registry id is not configured"}
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	texts := make([]string, len(input.Questions))
	types := make([]uint8, len(input.Questions))
	required := make([]bool, len(input.Questions))
	for i, q := range input.Questions {
		texts[i] = q.Text
		types[i] = uint8(q.Type)
		required[i] = q.Required
	}
	options, counts := Flatten(input.Questions)

	whitelist := input.Whitelist
	if input.AccessType != model.AccessWhitelist {
		whitelist = nil
	}
	normalized := make([]string, len(whitelist))
	for i, a := range whitelist {
		normalized[i] = model.NormalizeAddress(a)
	}
	whitelistBCS, err := encodeAddressVector(normalized)
	if err != nil {
		return nil, &InputError{Question: -1, Reason: err.Error()}
	}

	args := []Argument{
		objectArg("registry", b.network.RegistryID, true),
		pureArg("title", "0x1::string::String", input.Title, encodeString(input.Title)),
		pureArg("description", "0x1::string::String", input.Description, encodeString(input.Description)),
		pureArg("question_texts", "vector<0x1::string::String>", texts, encodeStringVector(texts)),
		pureArg("question_types", "vector<u8>", types, encodeU8Vector(types)),
		pureArg("required", "vector<bool>", required, encodeBoolVector(required)),
		pureArg("option_counts", "vector<u64>", counts, encodeU64Vector(counts)),
		pureArg("options", "vector<0x1::string::String>", options, encodeStringVector(options)),
		pureArg("end_time", "u64", uint64(input.EndTime), encodeU64(uint64(input.EndTime))),
		pureArg("access_type", "u8", uint8(input.AccessType), encodeU8(uint8(input.AccessType))),
		pureArg("whitelist", "vector<address>", normalized, whitelistBCS),
	}
	if len(input.CampaignSeed) > 0 {
		args = append(args, pureArg("campaign_seed", "vector<u8>", input.CampaignSeed, encodeBytes(input.CampaignSeed)))
	}
	args = append(args, objectArg("clock", blockchain.ClockObjectID, false))

	return &Transaction{
		Version:   1,
		Kind:      KindCreateCampaign,
		Target:    target,
		Arguments: args,
		GasBudget: b.gasBudget,
	}, nil
}

// SubmitResponse encodes answers against the campaign's questions. The
// response seed is optional and only used for encrypted campaigns.
func (b *Builder) SubmitResponse(campaign *model.Campaign, answers map[int]Answer, responseSeed []byte) (*Transaction, error) {
	target, err := b.target(submitResponseFunction)
	if err != nil {
		return nil, err
	}
	indices, values, err := EncodeAnswers(campaign.Questions, answers)
	if err != nil {
		return nil, err
	}

	args := []Argument{
		objectArg("campaign", campaign.ID, true),
		pureArg("question_indices", "vector<u64>", indices, encodeU64Vector(indices)),
		pureArg("answers", "vector<0x1::string::String>", values, encodeStringVector(values)),
		pureArg("response_seed", "vector<u8>", responseSeed, encodeBytes(responseSeed)),
		objectArg("clock", blockchain.ClockObjectID, false),
	}

	return &Transaction{
		Version:   1,
		Kind:      KindSubmitResponse,
		Target:    target,
		Arguments: args,
		GasBudget: b.gasBudget,
	}, nil
}
