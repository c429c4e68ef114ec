package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Option is a single answer choice within a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question represents a single exam question with its ordered options.
type Question struct {
	ID              uuid.UUID `json:"id"`
	ExamID          uuid.UUID `json:"exam_id"`
	Text            string    `json:"text"`
	Options         []Option  `json:"options"`
	CorrectOptionID string    `json:"correct_option_id"`
	OrderNum        int       `json:"order_num"`
}

// ErrCorrectOptionMismatch is returned when the correct option id does not
// reference exactly one of the question's options.
var ErrCorrectOptionMismatch = errors.New("correct_option_id must match exactly one option")

// Validate checks the structural invariants of a question: at least two
// options, unique option ids, and a correct option that matches exactly one
// of them.
func (q *Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("question needs at least 2 options, got %d", len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	matches := 0
	for _, opt := range q.Options {
		if opt.ID == "" {
			return errors.New("option id must not be empty")
		}
		if _, dup := seen[opt.ID]; dup {
			return fmt.Errorf("duplicate option id %q", opt.ID)
		}
		seen[opt.ID] = struct{}{}
		if opt.ID == q.CorrectOptionID {
			matches++
		}
	}
	if matches != 1 {
		return ErrCorrectOptionMismatch
	}
	return nil
}

// QuestionForParticipant is a question without the correct answer, sent to
// participants.
type QuestionForParticipant struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Options  []Option  `json:"options"`
	OrderNum int       `json:"order_num"`
}

// AddQuestionRequest is the payload for a single question in a bulk replace.
type AddQuestionRequest struct {
	Text            string   `json:"text" binding:"required,min=1,max=2000"`
	Options         []Option `json:"options" binding:"required,min=2,dive"`
	CorrectOptionID string   `json:"correct_option_id" binding:"required,max=36"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing an exam's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
