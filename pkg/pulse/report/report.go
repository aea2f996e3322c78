// Package report renders daily account summaries into a formatted
// spreadsheet, one row per account.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/taxonomy"
)

const (
	headerFill = "D9E1F2"
	minWidth   = 12
	maxWidth   = 60
	rowHeight  = 22.5
	// DefaultSheet is used when no sheet name is given.
	DefaultSheet = "Summary"
)

// Columns returns the header row for tax.
func Columns(tax *taxonomy.Taxonomy) []string {
	cols := []string{"Handle", "Date", "Total Posts"}
	for _, c := range tax.CategoryLabels() {
		cols = append(cols, c+" Posts")
	}
	cols = append(cols, tax.BucketLabels()...)
	for i := 1; i <= tax.TopPosts(); i++ {
		cols = append(cols,
			fmt.Sprintf("Top %d Views", i),
			fmt.Sprintf("Top %d URL", i),
			fmt.Sprintf("Top %d Text", i),
		)
	}
	if tax.TopTerms() > 0 {
		cols = append(cols, "Top Hashtags", "Top Mentions")
	}
	if tax.TopWords() > 0 {
		cols = append(cols, "Top Words")
	}
	for _, kw := range tax.TrackedLabels() {
		cols = append(cols, kw+"_mentions")
	}
	return cols
}

// Row returns the cell values for one summary, aligned with Columns(tax).
// Values are looked up by label so summaries stored under an older
// taxonomy still line up; missing labels read as zero.
func Row(tax *taxonomy.Taxonomy, s analytics.AccountSummary) []any {
	row := []any{s.Handle, s.Date, s.Total}
	for _, c := range tax.CategoryLabels() {
		row = append(row, analytics.Count(s.Categories, c))
	}
	for _, b := range tax.BucketLabels() {
		row = append(row, analytics.Count(s.Buckets, b))
	}
	for i := 0; i < tax.TopPosts(); i++ {
		var p analytics.PostRef
		if i < len(s.TopPosts) {
			p = s.TopPosts[i]
		}
		row = append(row, p.Views, p.URL, p.Text)
	}
	if tax.TopTerms() > 0 {
		row = append(row, FormatTerms(s.TopHashtags), FormatTerms(s.TopMentions))
	}
	if tax.TopWords() > 0 {
		row = append(row, FormatTerms(s.TopWords))
	}
	for _, kw := range tax.Tracked() {
		row = append(row, analytics.Count(s.Keywords, kw))
	}
	return row
}

// Rows returns one row per summary, in the given order.
func Rows(tax *taxonomy.Taxonomy, summaries []analytics.AccountSummary) [][]any {
	out := make([][]any, len(summaries))
	for i, s := range summaries {
		out[i] = Row(tax, s)
	}
	return out
}

// FormatTerms renders a frequency table as "term:count; term:count".
func FormatTerms(terms []analytics.TermCount) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%s:%d", t.Term, t.Count)
	}
	return strings.Join(parts, "; ")
}

// Build lays out and styles the workbook. The caller owns the returned file
// and must Close it.
func Build(sheet string, tax *taxonomy.Taxonomy, summaries []analytics.AccountSummary) (*excelize.File, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, err
	}

	header := Columns(tax)
	rows := make([][]any, 0, len(summaries)+1)
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	rows = append(rows, headerRow)
	rows = append(rows, Rows(tax, summaries)...)

	widths := make([]int, len(header))
	for r, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
		for c, v := range values {
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[c] {
				widths[c] = n
			}
		}
	}

	if err := style(f, sheet, len(header), len(rows), widths); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func style(f *excelize.File, sheet string, cols, rows int, widths []int) error {
	borders := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	align := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}

	bodyStyle, err := f.NewStyle(&excelize.Style{Border: borders, Alignment: align})
	if err != nil {
		return err
	}
	headStyle, err := f.NewStyle(&excelize.Style{
		Border:    borders,
		Alignment: align,
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headStyle); err != nil {
		return err
	}
	if rows > 1 {
		if err := f.SetCellStyle(sheet, "A2", fmt.Sprintf("%s%d", lastCol, rows), bodyStyle); err != nil {
			return err
		}
	}

	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, float64(ColumnWidth(w))); err != nil {
			return err
		}
	}
	for r := 1; r <= rows; r++ {
		if err := f.SetRowHeight(sheet, r, rowHeight); err != nil {
			return err
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// ColumnWidth sizes a column for its longest value.
func ColumnWidth(longest int) int {
	w := longest + 2
	if w < minWidth {
		w = minWidth
	}
	if w > maxWidth {
		w = maxWidth
	}
	return w
}

// Render writes the workbook to w.
func Render(w io.Writer, sheet string, tax *taxonomy.Taxonomy, summaries []analytics.AccountSummary) error {
	f, err := Build(sheet, tax, summaries)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// WriteFile writes the workbook to path.
func WriteFile(path, sheet string, tax *taxonomy.Taxonomy, summaries []analytics.AccountSummary) error {
	f, err := Build(sheet, tax, summaries)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}
