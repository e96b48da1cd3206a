package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/labquiz/internal/model"
)

func encodeRecord(rec model.ResponseRecord) []string {
	return []string{
		rec.StudentID,
		strconv.Itoa(rec.QuestionID),
		rec.SelectedOption,
		rec.CorrectOption,
		formatBool(rec.IsCorrect),
		rec.Timestamp.Format(model.TimestampLayout),
		rec.IP,
		rec.Workstation,
		string(rec.Status),
	}
}

// formatBool matches the True/False spelling of spreadsheet exports.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func decodeRecord(row []string) (model.ResponseRecord, error) {
	if len(row) != len(model.ResponseColumns) {
		return model.ResponseRecord{}, fmt.Errorf("want %d columns, got %d", len(model.ResponseColumns), len(row))
	}

	qid, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return model.ResponseRecord{}, fmt.Errorf("question_id %q: %w", row[1], err)
	}
	isCorrect, err := strconv.ParseBool(strings.TrimSpace(row[4]))
	if err != nil {
		return model.ResponseRecord{}, fmt.Errorf("is_correct %q: %w", row[4], err)
	}
	ts, err := parseTimestamp(row[5])
	if err != nil {
		return model.ResponseRecord{}, fmt.Errorf("timestamp %q: %w", row[5], err)
	}

	return model.ResponseRecord{
		StudentID:      row[0],
		QuestionID:     qid,
		SelectedOption: row[2],
		CorrectOption:  row[3],
		IsCorrect:      isCorrect,
		Timestamp:      ts,
		IP:             row[6],
		Workstation:    row[7],
		Status:         model.SubmissionStatus(row[8]),
	}, nil
}

// readRecords parses a response table. Any deviation from the canonical header
// or a malformed row is reported as ErrStoreCorrupt.
func readRecords(r io.Reader) ([]model.ResponseRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(model.ResponseColumns)

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing header", ErrStoreCorrupt)
		}
		return nil, fmt.Errorf("%w: header: %v", ErrStoreCorrupt, err)
	}
	for i, col := range model.ResponseColumns {
		if strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")) != col {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrStoreCorrupt, i, header[i], col)
		}
	}

	var records []model.ResponseRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrStoreCorrupt, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeRecords writes the header followed by every record.
func writeRecords(w io.Writer, records []model.ResponseRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, model.ResponseColumns)
	for _, rec := range records {
		rows = append(rows, encodeRecord(rec))
	}
	return writeRows(w, rows)
}

func writeRows(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func parseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(model.TimestampLayout, strings.TrimSpace(s), time.Local)
}
