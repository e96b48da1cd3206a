package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// table is a header-indexed view over rows read from a spreadsheet or CSV file.
type table struct {
	columns map[string]int
	rows    [][]string
}

// readTable loads the first sheet of an .xlsx file, or a .csv file, into a table.
// Header names are matched case-insensitively after trimming.
func readTable(path string) (*table, error) {
	var raw [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		raw, err = readCSVRows(path)
	default:
		raw, err = readXLSXRows(path)
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: no header row", filepath.Base(path))
	}

	t := &table{columns: make(map[string]int, len(raw[0]))}
	for i, name := range raw[0] {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key != "" {
			t.columns[key] = i
		}
	}
	for _, row := range raw[1:] {
		if !blankRow(row) {
			t.rows = append(t.rows, row)
		}
	}
	return t, nil
}

// require reports the first missing column.
func (t *table) require(names ...string) error {
	for _, n := range names {
		if _, ok := t.columns[n]; !ok {
			return fmt.Errorf("missing column %q", n)
		}
	}
	return nil
}

// cell returns the trimmed value of column name in row, or "" when absent.
// Spreadsheet rows are ragged: trailing empty cells are not returned by excelize.
func (t *table) cell(row []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
