package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"campaignclient/internal/campaigns"
	"campaignclient/internal/model"
	"campaignclient/internal/txbuilder"

	"github.com/pkg/errors"
)

type questionFile struct {
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options"`
}

// campaignFile is the file accepted by `create --file`.
type campaignFile struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []questionFile `json:"questions"`
	// EndTime is RFC 3339; Duration is used when it is empty.
	EndTime   string   `json:"endTime"`
	Duration  string   `json:"duration"`
	Access    string   `json:"access"`
	Whitelist []string `json:"whitelist"`
	Encrypt   bool     `json:"encrypt"`
}

func loadCampaignFile(path string, now time.Time) (campaigns.CreateRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return campaigns.CreateRequest{}, errors.Wrap(err, "read campaign file")
	}
	var file campaignFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return campaigns.CreateRequest{}, errors.Wrapf(err, "parse %s", path)
	}
	return file.request(now)
}

func (s campaignFile) request(now time.Time) (campaigns.CreateRequest, error) {
	req := campaigns.CreateRequest{
		Title:       s.Title,
		Description: s.Description,
		Whitelist:   s.Whitelist,
		Encrypt:     s.Encrypt,
	}

	switch {
	case s.EndTime != "":
		end, err := time.Parse(time.RFC3339, s.EndTime)
		if err != nil {
			return req, errors.Wrap(err, "endTime")
		}
		req.EndTime = end
	case s.Duration != "":
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return req, errors.Wrap(err, "duration")
		}
		req.EndTime = now.Add(d)
	default:
		return req, errors.New("either endTime or duration is required")
	}

	switch strings.ToLower(s.Access) {
	case "", "open":
		req.AccessType = model.AccessOpen
	case "whitelist":
		req.AccessType = model.AccessWhitelist
	default:
		return req, errors.Errorf("unknown access %q", s.Access)
	}

	for i, q := range s.Questions {
		typ, err := parseQuestionType(q.Type)
		if err != nil {
			return req, errors.Wrapf(err, "question %d", i)
		}
		req.Questions = append(req.Questions, txbuilder.QuestionInput{
			Text:     q.Text,
			Type:     typ,
			Required: q.Required,
			Options:  q.Options,
		})
	}
	return req, nil
}

func parseQuestionType(name string) (model.QuestionType, error) {
	for _, t := range []model.QuestionType{model.SingleChoice, model.MultipleChoice, model.Text} {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown question type %q", name)
}

// parseAnswers turns `index=value` flags into answers. Multiple choice values
// are comma separated option labels.
func parseAnswers(questions []model.Question, values []string) (map[int]txbuilder.Answer, error) {
	answers := make(map[int]txbuilder.Answer, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok {
			return nil, errors.Errorf("answer %q is not index=value", v)
		}
		index, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, errors.Errorf("answer %q has no question index", v)
		}
		if _, dup := answers[index]; dup {
			return nil, errors.Errorf("question %d answered twice", index)
		}

		typ := model.Text
		if index >= 0 && index < len(questions) {
			typ = questions[index].Type
		}
		switch typ {
		case model.SingleChoice:
			answers[index] = txbuilder.Choice(strings.TrimSpace(value))
		case model.MultipleChoice:
			labels := strings.Split(value, ",")
			for i := range labels {
				labels[i] = strings.TrimSpace(labels[i])
			}
			answers[index] = txbuilder.Choices(labels...)
		default:
			answers[index] = txbuilder.TextAnswer(value)
		}
	}
	return answers, nil
}
