// Package export renders the content collections as an Excel workbook for the
// administrators.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/impa/website/internal/content"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	NewsSheet     = "News"
	ProjectsSheet = "Projects"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	newsHeader     = []any{"ID", "Title", "Summary", "Content", "Date", "Status", "Category", "Read time", "Photo"}
	newsWidths     = []float64{16, 40, 50, 60, 12, 12, 18, 12, 30}
	projectsHeader = []any{"ID", "Name", "Description", "Status", "Type", "Start date", "Progress", "Photo"}
	projectsWidths = []float64{10, 36, 60, 14, 16, 12, 10, 30}
)

// Workbook builds a workbook with one sheet per collection. The caller must
// Close it.
func Workbook(news []content.NewsItem, projects []content.ProjectItem) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", NewsSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ProjectsSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	newsRows := make([][]any, 0, len(news))
	for i := range news {
		n := &news[i]
		newsRows = append(newsRows, []any{
			strconv.FormatInt(n.ID, 10), n.Title, n.Summary, n.Content, n.Date, n.Status, n.Category, n.ReadTime, deref(n.Photo),
		})
	}
	if err := writeSheet(f, NewsSheet, header, newsHeader, newsWidths, newsRows); err != nil {
		_ = f.Close()
		return nil, err
	}

	projectRows := make([][]any, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		projectRows = append(projectRows, []any{
			p.ID, p.Name, p.Description, p.Status, p.Type, p.StartDate, float64(p.Progress) / 100, deref(p.Photo),
		})
	}
	if err := writeSheet(f, ProjectsSheet, header, projectsHeader, projectsWidths, projectRows); err != nil {
		_ = f.Close()
		return nil, err
	}
	if len(projects) > 0 {
		if err := f.SetCellStyle(ProjectsSheet, "G2", "G"+strconv.Itoa(len(projects)+1), percent); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, style int, header []any, widths []float64, rows [][]any) error {
	rtl := true
	if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	for i, row := range rows {
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.AutoFilter(sheet, "A1:"+last, nil)
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, news []content.NewsItem, projects []content.ProjectItem) error {
	f, err := Workbook(news, projects)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
