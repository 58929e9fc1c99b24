package export

import (
	"bytes"
	"testing"

	"github.com/impa/website/internal/content"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	photo := "/harbor.jpg"
	news := []content.NewsItem{{ID: 1700000000000, Title: "افتتاح", Content: "c", Date: "2025-01-02", Status: "published"}}
	projects := []content.ProjectItem{
		{ID: "PRJ-001", Name: "Harbor", Description: "d", Status: "جاري", Progress: 40, Photo: &photo},
		{ID: "PRJ-002", Name: "Road", Description: "d", Status: "مخطط"},
	}
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, news, projects); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != NewsSheet || got[1] != ProjectsSheet {
		t.Fatalf("got sheets %v", got)
	}
	rows, err := f.GetRows(NewsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "ID" || rows[1][0] != "1700000000000" || rows[1][1] != "افتتاح" {
		t.Errorf("got %v", rows)
	}
	rows, err = f.GetRows(ProjectsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][0] != "PRJ-001" || rows[1][7] != "/harbor.jpg" {
		t.Errorf("got %v", rows)
	}
	if v, err := f.GetCellValue(ProjectsSheet, "G2", excelize.Options{RawCellValue: true}); err != nil || v != "0.4" {
		t.Errorf("got %q, %v, want 0.4", v, err)
	}
}

func TestWorkbook_Empty(t *testing.T) {
	f, err := Workbook(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(ProjectsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows, want only the header", len(rows))
	}
}
