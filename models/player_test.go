package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNickname(t *testing.T) {
	nick, err := SanitizeNickname("  Alice_42  ")
	assert.NoError(t, err)
	assert.Equal(t, "Alice_42", nick)

	for _, bad := range []string{"a", strings.Repeat("x", 16), "has space", "émoji", "semi;colon", ""} {
		_, err := SanitizeNickname(bad)
		assert.Error(t, err, "nickname %q should be rejected", bad)
	}
}

func TestStreakCaps(t *testing.T) {
	p := NewPlayer("p1", "c1", "Alice", "123456", "t1", testStart)
	p.Streak = MaxStreak
	p.LongestStreak = MaxStreak

	p.RecordCorrect(100)
	assert.Equal(t, MaxStreak, p.Streak)
	assert.Equal(t, MaxStreak, p.LongestStreak)

	p.RecordWrong()
	assert.Equal(t, 0, p.Streak)
	assert.Equal(t, MaxStreak, p.LongestStreak)
}

func TestAddScoreClampsAtZero(t *testing.T) {
	p := NewPlayer("p1", "c1", "Alice", "123456", "t1", testStart)
	p.AddScore(50)
	p.AddScore(-200)
	assert.Equal(t, 0, p.Score)
}

func TestQuestionValidate(t *testing.T) {
	valid := Question{
		Text:               "Pick one",
		Type:               QuestionMultipleChoice,
		Options:            []string{"A", "B", "C"},
		CorrectAnswerIndex: 2,
		TimeLimit:          20,
		Points:             500,
	}
	assert.NoError(t, valid.Validate())

	tf := valid
	tf.Type = QuestionTrueFalse
	assert.Error(t, tf.Validate(), "true/false needs exactly 2 options")
	tf.Options = []string{"True", "False"}
	tf.CorrectAnswerIndex = 0
	assert.NoError(t, tf.Validate())

	cases := []func(q *Question){
		func(q *Question) { q.Text = "   " },
		func(q *Question) { q.Options = []string{"A"} },
		func(q *Question) { q.Options = []string{"A", "B", "C", "D", "E"} },
		func(q *Question) { q.Options = []string{"A", ""}; q.CorrectAnswerIndex = 0 },
		func(q *Question) { q.CorrectAnswerIndex = 3 },
		func(q *Question) { q.CorrectAnswerIndex = -1 },
		func(q *Question) { q.TimeLimit = 4 },
		func(q *Question) { q.TimeLimit = 121 },
		func(q *Question) { q.Points = 99 },
		func(q *Question) { q.Points = 10001 },
		func(q *Question) { q.ImageURL = "ftp://example.com/a.png" },
	}
	for i, mutate := range cases {
		q := valid
		q.Options = append([]string(nil), valid.Options...)
		mutate(&q)
		assert.Error(t, q.Validate(), "case %d should fail validation", i)
	}
}

func TestQuestionViews(t *testing.T) {
	q := Question{
		Text:               "Pick one",
		Type:               QuestionMultipleChoice,
		Options:            []string{"A", "B"},
		CorrectAnswerIndex: 1,
		TimeLimit:          10,
		Points:             200,
	}

	public := q.PublicView(0, 5)
	_, leaked := public["correct_answer_index"]
	assert.False(t, leaked, "public view must not carry the answer")

	host := q.HostView(0, 5)
	assert.Equal(t, 1, host["correct_answer_index"])
}
