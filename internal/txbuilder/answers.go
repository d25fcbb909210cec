package txbuilder

import (
	"slices"
	"strconv"
	"strings"

	"campaignclient/internal/model"
)

// Answer holds the user's input for one question: option labels for choice
// questions, free text for text questions.
type Answer struct {
	Choices []string
	Text    string
}

func Choice(label string) Answer {
	return Answer{Choices: []string{label}}
}

func Choices(labels ...string) Answer {
	return Answer{Choices: labels}
}

func TextAnswer(text string) Answer {
	return Answer{Text: text}
}

func (a Answer) empty() bool {
	return len(a.Choices) == 0 && a.Text == ""
}

// EncodeAnswers produces the parallel (question index, answer string) vectors
// in ascending question order. Single choice encodes the zero-based option
// index, multiple choice the comma-joined ascending indices, text verbatim.
func EncodeAnswers(questions []model.Question, answers map[int]Answer) ([]uint64, []string, error) {
	for index := range answers {
		if index < 0 || index >= len(questions) {
			return nil, nil, questionErr(index, "no such question")
		}
	}

	indices := make([]uint64, 0, len(answers))
	values := make([]string, 0, len(answers))
	for i, q := range questions {
		answer, ok := answers[i]
		if !ok || answer.empty() {
			if q.Required {
				return nil, nil, questionErr(i, "an answer is required")
			}
			continue
		}

		value, err := encodeAnswer(i, &q, answer)
		if err != nil {
			return nil, nil, err
		}
		indices = append(indices, uint64(i))
		values = append(values, value)
	}
	return indices, values, nil
}

func encodeAnswer(index int, q *model.Question, answer Answer) (string, error) {
	switch q.Type {
	case model.SingleChoice:
		if len(answer.Choices) != 1 {
			return "", questionErr(index, "single choice takes exactly one option")
		}
		option, err := optionIndex(index, q, answer.Choices[0])
		if err != nil {
			return "", err
		}
		return strconv.Itoa(option), nil
	case model.MultipleChoice:
		if len(answer.Choices) == 0 {
			return "", questionErr(index, "multiple choice takes at least one option")
		}
		selected := make([]int, 0, len(answer.Choices))
		for _, label := range answer.Choices {
			option, err := optionIndex(index, q, label)
			if err != nil {
				return "", err
			}
			if !slices.Contains(selected, option) {
				selected = append(selected, option)
			}
		}
		slices.Sort(selected)
		parts := make([]string, len(selected))
		for i, option := range selected {
			parts[i] = strconv.Itoa(option)
		}
		return strings.Join(parts, ","), nil
	default:
		if len(answer.Choices) > 0 {
			return "", questionErr(index, "text questions take free text")
		}
		return answer.Text, nil
	}
}

func optionIndex(index int, q *model.Question, label string) (int, error) {
	option := slices.Index(q.Options, label)
	if option < 0 {
		return 0, questionErr(index, "unknown option %q", label)
	}
	return option, nil
}

// DecodeAnswer reverses EncodeAnswers for one stored answer, returning the
// selected option indices of a choice question.
func DecodeAnswer(q *model.Question, value string) ([]int, error) {
	if !q.Type.IsChoice() || value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		option, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || option < 0 || option >= len(q.Options) {
			return nil, inputErr("stored answer " + strconv.Quote(value) + " does not match the options")
		}
		out = append(out, option)
	}
	return out, nil
}
