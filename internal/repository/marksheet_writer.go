package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/stemsi/labquiz/internal/model"
	"github.com/xuri/excelize/v2"
)

const marksheetSheet = "Marksheet"

var marksheetColumns = []string{"student_id", "total_score", "workstation", "status"}

// MarksheetWriter renders marksheet rows as marksheet.csv and marksheet.xlsx in dir.
type MarksheetWriter struct {
	dir string
}

// NewMarksheetWriter creates a writer that places its artifacts in dir.
func NewMarksheetWriter(dir string) *MarksheetWriter {
	return &MarksheetWriter{dir: dir}
}

// CSVPath returns the path of the CSV artifact.
func (w *MarksheetWriter) CSVPath() string { return filepath.Join(w.dir, "marksheet.csv") }

// XLSXPath returns the path of the workbook artifact.
func (w *MarksheetWriter) XLSXPath() string { return filepath.Join(w.dir, "marksheet.xlsx") }

// Write replaces both artifacts with rows.
func (w *MarksheetWriter) Write(rows []model.MarksheetRow) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create marksheet dir: %w", err)
	}
	if err := replaceFile(w.CSVPath(), func(f io.Writer) error { return WriteMarksheetCSV(f, rows) }); err != nil {
		return fmt.Errorf("write marksheet csv: %w", err)
	}
	if err := replaceFile(w.XLSXPath(), func(f io.Writer) error { return WriteMarksheetXLSX(f, rows) }); err != nil {
		return fmt.Errorf("write marksheet xlsx: %w", err)
	}
	return nil
}

// WriteMarksheetCSV encodes rows as CSV with a header.
func WriteMarksheetCSV(out io.Writer, rows []model.MarksheetRow) error {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, marksheetColumns)
	for _, r := range rows {
		table = append(table, []string{r.StudentID, strconv.Itoa(r.TotalScore), r.Workstation, string(r.Status)})
	}
	cw := csv.NewWriter(out)
	if err := cw.WriteAll(table); err != nil {
		return err
	}
	return cw.Error()
}

// WriteMarksheetXLSX encodes rows as a single-sheet workbook.
func WriteMarksheetXLSX(out io.Writer, rows []model.MarksheetRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", marksheetSheet); err != nil {
		return err
	}
	header := make([]interface{}, len(marksheetColumns))
	for i, c := range marksheetColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(marksheetSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.StudentID, r.TotalScore, r.Workstation, string(r.Status)}
		if err := f.SetSheetRow(marksheetSheet, cell, &values); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(out)
	return err
}
