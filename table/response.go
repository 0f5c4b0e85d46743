// Package table paints a server page response into a list view: the table
// itself plus the pager controls around it.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Placeholder is shown for null or missing cells.
const Placeholder = "-"

// Column describes one table column.
type Column struct {
	Header    string `json:"header"`
	DataIndex string `json:"data_index"`
}

// Row maps data indexes to cell values. JSON null decodes to nil.
type Row map[string]any

// PageResponse is the JSON document returned by the rows endpoint.
type PageResponse struct {
	FirstShown      int      `json:"first_shown"`
	LastShown       int      `json:"last_shown"`
	TotalRowsCount  int      `json:"total_rows_count"`
	TotalPagesCount int      `json:"total_pages_count"`
	PageNumber      int      `json:"page_number"`
	Columns         []Column `json:"columns"`
	Rows            []Row    `json:"rows"`
}

// Decode reads a PageResponse. Numbers inside rows keep their textual form.
func Decode(r io.Reader) (*PageResponse, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var resp PageResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode page response: %w", err)
	}
	return &resp, nil
}

// Validate reports every broken invariant of the response. Rendering does not
// depend on it; callers use it for diagnostics.
func (p *PageResponse) Validate() error {
	var errs []error
	if p.FirstShown < 1 {
		errs = append(errs, fmt.Errorf("first_shown %d < 1", p.FirstShown))
	}
	if p.FirstShown > p.LastShown {
		errs = append(errs, fmt.Errorf("first_shown %d > last_shown %d", p.FirstShown, p.LastShown))
	}
	if p.LastShown > p.TotalRowsCount {
		errs = append(errs, fmt.Errorf("last_shown %d > total_rows_count %d", p.LastShown, p.TotalRowsCount))
	}
	if p.TotalPagesCount < 1 {
		errs = append(errs, fmt.Errorf("total_pages_count %d < 1", p.TotalPagesCount))
	}
	if p.PageNumber < 1 || p.PageNumber > p.TotalPagesCount {
		errs = append(errs, fmt.Errorf("page_number %d outside 1..%d", p.PageNumber, p.TotalPagesCount))
	}
	return errors.Join(errs...)
}

// Cell returns the display text of column col in row.
func (r Row) Cell(col Column) string {
	return CellText(r[col.DataIndex])
}

// CellText converts a decoded JSON value to cell text.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return Placeholder
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
