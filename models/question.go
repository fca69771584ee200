// models/question.go - Quiz question data
package models

import "strings"

// QuestionType distinguishes the two supported answer layouts.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
)

const (
	MinTimeLimitSeconds = 5
	MaxTimeLimitSeconds = 120
	MinPoints           = 100
	MaxPoints           = 10000
	MinOptions          = 2
	MaxOptions          = 4
)

// Question is a single quiz question. Once cloned into a room snapshot it
// must be treated as immutable.
type Question struct {
	ID                 string       `json:"id"`
	Text               string       `json:"text"`
	Type               QuestionType `json:"type"`
	Options            []string     `json:"options"`
	CorrectAnswerIndex int          `json:"correct_answer_index"`
	TimeLimit          int          `json:"time_limit"` // seconds
	Points             int          `json:"points"`
	ImageURL           string       `json:"image_url,omitempty"`
}

// Validate checks the question against the documented bounds.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("Question text is required")
	}

	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < MinOptions || len(q.Options) > MaxOptions {
			return NewValidationError("Multiple choice questions need %d-%d options", MinOptions, MaxOptions)
		}
	case QuestionTrueFalse:
		if len(q.Options) != 2 {
			return NewValidationError("True/false questions need exactly 2 options")
		}
	default:
		return NewValidationError("Unknown question type: %s", q.Type)
	}

	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return NewValidationError("Option %d must not be empty", i)
		}
	}

	if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
		return NewValidationError("Correct answer index %d out of range", q.CorrectAnswerIndex)
	}
	if q.TimeLimit < MinTimeLimitSeconds || q.TimeLimit > MaxTimeLimitSeconds {
		return NewValidationError("Time limit must be %d-%d seconds", MinTimeLimitSeconds, MaxTimeLimitSeconds)
	}
	if q.Points < MinPoints || q.Points > MaxPoints {
		return NewValidationError("Points must be %d-%d", MinPoints, MaxPoints)
	}
	if q.ImageURL != "" &&
		!strings.HasPrefix(q.ImageURL, "http://") &&
		!strings.HasPrefix(q.ImageURL, "https://") {
		return NewValidationError("Image URL must be http or https")
	}

	return nil
}

// Clone returns an independent copy of the question.
func (q *Question) Clone() Question {
	cp := *q
	cp.Options = make([]string, len(q.Options))
	copy(cp.Options, q.Options)
	return cp
}

// TimeLimitMs returns the time limit in milliseconds.
func (q *Question) TimeLimitMs() int {
	return q.TimeLimit * 1000
}

// PublicView is the question as broadcast to players: no correct index.
func (q *Question) PublicView(index, total int) map[string]interface{} {
	return map[string]interface{}{
		"index":      index,
		"total":      total,
		"text":       q.Text,
		"type":       q.Type,
		"options":    append([]string(nil), q.Options...),
		"time_limit": q.TimeLimit,
		"points":     q.Points,
		"image_url":  q.ImageURL,
	}
}

// HostView includes the correct answer index for the host screen.
func (q *Question) HostView(index, total int) map[string]interface{} {
	view := q.PublicView(index, total)
	view["correct_answer_index"] = q.CorrectAnswerIndex
	return view
}
