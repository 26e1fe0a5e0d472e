package templates

import (
	"strconv"

	"github.com/JonMunkholm/csvkit/internal/csv"
)

// IndexParams pre-fills the paste form.
type IndexParams struct {
	Delimiter string
	Quote     string
	HasHeader bool
	Numeric   bool
}

// NewIndexParams builds the form defaults from a dialect.
func NewIndexParams(dialect csv.Config) IndexParams {
	return IndexParams{
		Delimiter: DialectName(dialect.Delimiter),
		Quote:     string(dialect.Quote),
		HasHeader: dialect.HasHeader,
		Numeric:   dialect.NumericCoercion,
	}
}

// DialectName spells delimiters that do not survive a text input.
func DialectName(r rune) string {
	if r == '\t' {
		return "tab"
	}
	return string(r)
}

// PreviewCell is one rendered field. Title holds the coerced value.
type PreviewCell struct {
	Text     string
	Title    string
	IsNumber bool
}

// PreviewRow is one rendered record with its 1-based position.
type PreviewRow struct {
	Position string
	Cells    []PreviewCell
}

// PreviewParams is the view model for the preview page.
type PreviewParams struct {
	Summary string
	Header  []string
	Rows    []PreviewRow
	// Truncated is empty when every record is shown.
	Truncated string
}

// NewPreviewParams renders up to maxRows records of t.
func NewPreviewParams(t *csv.Table, maxRows int) PreviewParams {
	shown := min(t.Len(), maxRows)
	p := PreviewParams{
		Summary: strconv.Itoa(t.Len()) + " records, " + strconv.Itoa(t.Width()) + " columns",
		Rows:    make([]PreviewRow, shown),
	}
	if t.HasHeader() {
		p.Header = t.Header
	}

	for i := range shown {
		rec := t.Records[i]
		row := PreviewRow{
			Position: strconv.Itoa(i + 1),
			Cells:    make([]PreviewCell, len(rec)),
		}
		for j, field := range rec {
			cell := PreviewCell{Text: field}
			if v, ok := t.Number(i, j); ok {
				cell.IsNumber = true
				cell.Title = strconv.FormatFloat(v, 'g', -1, 64)
			}
			row.Cells[j] = cell
		}
		p.Rows[i] = row
	}

	if shown < t.Len() {
		p.Truncated = "Showing the first " + strconv.Itoa(shown) + " records."
	}
	return p
}
