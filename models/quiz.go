// models/quiz.go - Quiz and frozen snapshot
package models

import "strings"

// MaxQuestionsPerQuiz bounds the number of questions a game can run.
const MaxQuestionsPerQuiz = 50

// Quiz is the read-only quiz document the core consumes when a game starts.
// Authoring and persistence live outside the core.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	OwnerID   string     `json:"owner_id"`
	Questions []Question `json:"questions"`
	PlayCount int        `json:"play_count"`
}

// Validate checks the quiz shape and every question.
func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return NewValidationError("Quiz title is required")
	}
	if len(q.Questions) == 0 {
		return NewValidationError("Quiz has no questions")
	}
	if len(q.Questions) > MaxQuestionsPerQuiz {
		return NewValidationError("Quiz exceeds %d questions", MaxQuestionsPerQuiz)
	}
	for i := range q.Questions {
		if err := q.Questions[i].Validate(); err != nil {
			return NewValidationError("Question %d: %s", i, err.Error())
		}
	}
	return nil
}

// QuizSnapshot is the deep-cloned, frozen copy of a quiz taken when a game
// starts. Host-side edits to the live quiz cannot reach a snapshot, and the
// snapshot never hands out references into its own storage.
type QuizSnapshot struct {
	quizID    string
	title     string
	questions []Question
}

// NewQuizSnapshot deep-clones the quiz into an immutable snapshot.
func NewQuizSnapshot(quiz *Quiz) *QuizSnapshot {
	questions := make([]Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[i] = quiz.Questions[i].Clone()
	}
	return &QuizSnapshot{
		quizID:    quiz.ID,
		title:     quiz.Title,
		questions: questions,
	}
}

// QuizID returns the source quiz id.
func (s *QuizSnapshot) QuizID() string { return s.quizID }

// Title returns the quiz title at snapshot time.
func (s *QuizSnapshot) Title() string { return s.title }

// Len returns the number of questions.
func (s *QuizSnapshot) Len() int { return len(s.questions) }

// Question returns a copy of the question at index, or nil when out of range.
func (s *QuizSnapshot) Question(index int) *Question {
	if index < 0 || index >= len(s.questions) {
		return nil
	}
	cp := s.questions[index].Clone()
	return &cp
}
