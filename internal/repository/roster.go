package repository

import (
	"fmt"
	"strings"

	"github.com/stemsi/labquiz/internal/model"
)

// Roster is the read-only credential table: roll number → stored secret.
type Roster struct {
	students map[string]model.StudentRecord
}

// NewRoster builds a roster; roll numbers are normalized and later entries win.
func NewRoster(records []model.StudentRecord) *Roster {
	r := &Roster{students: make(map[string]model.StudentRecord, len(records))}
	for _, rec := range records {
		rec.RollNumber = NormalizeRollNumber(rec.RollNumber)
		if rec.RollNumber == "" {
			continue
		}
		r.students[rec.RollNumber] = rec
	}
	return r
}

// LoadRoster reads an .xlsx or .csv file with columns roll_no, password.
func LoadRoster(path string) (*Roster, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if err := t.require("roll_no", "password"); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	records := make([]model.StudentRecord, 0, len(t.rows))
	for _, row := range t.rows {
		records = append(records, model.StudentRecord{
			RollNumber: t.cell(row, "roll_no"),
			Secret:     t.cell(row, "password"),
		})
	}
	return NewRoster(records), nil
}

// Lookup finds a student by roll number (any case, surrounding spaces ignored).
func (r *Roster) Lookup(rollNumber string) (model.StudentRecord, bool) {
	rec, ok := r.students[NormalizeRollNumber(rollNumber)]
	return rec, ok
}

// Len returns the number of students.
func (r *Roster) Len() int { return len(r.students) }

// NormalizeRollNumber trims and uppercases a roll number.
func NormalizeRollNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
