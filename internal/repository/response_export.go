package repository

import (
	"io"

	"github.com/stemsi/labquiz/internal/model"
	"github.com/xuri/excelize/v2"
)

const responsesSheet = "Responses"

// WriteResponsesCSV encodes records in the persisted store's column layout.
func WriteResponsesCSV(out io.Writer, records []model.ResponseRecord) error {
	return writeRecords(out, records)
}

// WriteResponsesXLSX encodes records as a single-sheet workbook through the stream writer.
func WriteResponsesXLSX(out io.Writer, records []model.ResponseRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", responsesSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(responsesSheet)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(model.ResponseColumns))
	for i, c := range model.ResponseColumns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			rec.StudentID,
			rec.QuestionID,
			rec.SelectedOption,
			rec.CorrectOption,
			formatBool(rec.IsCorrect),
			rec.Timestamp.Format(model.TimestampLayout),
			rec.IP,
			rec.Workstation,
			string(rec.Status),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(out)
	return err
}
