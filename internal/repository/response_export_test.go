package repository

import (
	"bytes"
	"testing"

	"github.com/stemsi/labquiz/internal/model"
	"github.com/xuri/excelize/v2"
)

func TestWriteResponsesXLSX(t *testing.T) {
	recs := []model.ResponseRecord{sampleRecord("2021-EE-314", 1, true), sampleRecord("2021-EE-314", 2, false)}

	var buf bytes.Buffer
	if err := WriteResponsesXLSX(&buf, recs); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(responsesSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "student_id" || rows[0][8] != "status" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[2][0] != "2021-EE-314" || rows[2][1] != "2" {
		t.Fatalf("row = %v", rows[2])
	}
}

func TestWriteResponsesCSVRoundTrips(t *testing.T) {
	recs := []model.ResponseRecord{sampleRecord("2021-EE-314", 4, true)}
	var buf bytes.Buffer
	if err := WriteResponsesCSV(&buf, recs); err != nil {
		t.Fatal(err)
	}
	got, err := readRecords(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !sameRecord(got[0], recs[0]) {
		t.Fatalf("got %+v", got)
	}
}
