package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/stemsi/labquiz/internal/model"
)

const imagePrefix = "/images/"

var questionColumns = []string{"id", "question", "option1", "option2", "option3", "option4", "correct"}

// QuestionBank is the immutable, in-memory question store loaded at startup.
type QuestionBank struct {
	questions []model.Question
	byID      map[int]int
}

// NewQuestionBank builds a bank from already-parsed questions. Ids must be unique.
func NewQuestionBank(questions []model.Question) (*QuestionBank, error) {
	b := &QuestionBank{
		questions: make([]model.Question, 0, len(questions)),
		byID:      make(map[int]int, len(questions)),
	}
	for _, q := range questions {
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
	}
	return b, nil
}

// LoadQuestionBank reads questions from an .xlsx or .csv file with columns
// id, question, img, option1..option4, correct.
func LoadQuestionBank(path string) (*QuestionBank, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if err := t.require(questionColumns...); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	questions := make([]model.Question, 0, len(t.rows))
	for i, row := range t.rows {
		id, err := parseID(t.cell(row, "id"))
		if err != nil {
			return nil, fmt.Errorf("load questions: row %d: %w", i+2, err)
		}
		questions = append(questions, model.Question{
			ID:       id,
			Text:     t.cell(row, "question"),
			ImageURL: normalizeImage(t.cell(row, "img")),
			Options: []string{
				t.cell(row, "option1"),
				t.cell(row, "option2"),
				t.cell(row, "option3"),
				t.cell(row, "option4"),
			},
			Correct: NormalizeOption(t.cell(row, "correct")),
		})
	}
	return NewQuestionBank(questions)
}

// All returns the questions in file order. The slice must not be modified.
func (b *QuestionBank) All() []model.Question { return b.questions }

// Len returns the number of questions.
func (b *QuestionBank) Len() int { return len(b.questions) }

// Get looks a question up by id.
func (b *QuestionBank) Get(id int) (model.Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return model.Question{}, false
	}
	return b.questions[i], true
}

// NormalizeOption trims and uppercases an option for comparison.
func NormalizeOption(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeImage maps a bare file name to /images/<name>.
func normalizeImage(img string) string {
	if img == "" {
		return ""
	}
	if strings.HasPrefix(img, imagePrefix) {
		return img
	}
	return imagePrefix + strings.TrimLeft(img, "/")
}

// parseID accepts "7" as well as the "7.0" some spreadsheet exports produce.
func parseID(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("invalid question id %q", s)
	}
	return int(f), nil
}
