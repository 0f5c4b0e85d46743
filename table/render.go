package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"listview/dom"
)

// Caption presets. Each takes first shown, last shown and total row count.
const (
	CaptionEnglish = "Showing records %d–%d of %d"
	CaptionRussian = "Показаны записи с %d по %d из %d"
)

// ErrNoResponse is returned when Render is called without a response.
var ErrNoResponse = errors.New("no page response")

// CaptionPreset resolves a preset name ("en", "ru") or returns name itself as
// a format string.
func CaptionPreset(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "en", "english":
		return CaptionEnglish
	case "ru", "russian":
		return CaptionRussian
	}
	return name
}

// View exposes the elements the renderer writes to.
type View interface {
	TableContainer() *dom.Element
	PageInput() *dom.Element
	FirstButton() *dom.Element
	PrevButton() *dom.Element
	NextButton() *dom.Element
	LastButton() *dom.Element
}

// Config tunes the produced markup.
type Config struct {
	// CaptionFormat defaults to CaptionEnglish.
	CaptionFormat string
	// Style holds inline CSS declarations for the table element.
	Style string
}

// Renderer paints page responses. It holds no per-response state, so
// rendering the same response twice produces the same markup.
type Renderer struct {
	caption string
	style   string
}

// NewRenderer validates cfg.
func NewRenderer(cfg Config) (*Renderer, error) {
	style, err := normalizeStyle(cfg.Style)
	if err != nil {
		return nil, err
	}
	caption := cfg.CaptionFormat
	if caption == "" {
		caption = CaptionEnglish
	}
	return &Renderer{caption: caption, style: style}, nil
}

// Caption formats the summary line for resp.
func (r *Renderer) Caption(resp *PageResponse) string {
	return fmt.Sprintf(r.caption, resp.FirstShown, resp.LastShown, resp.TotalRowsCount)
}

// Render replaces the container content with a table for resp and updates the
// pager controls.
func (r *Renderer) Render(v View, resp *PageResponse) error {
	if resp == nil {
		return ErrNoResponse
	}
	r.renderTable(v.TableContainer(), resp)
	updateControls(v, resp)
	return nil
}

func (r *Renderer) renderTable(container *dom.Element, resp *PageResponse) {
	container.Clear()
	doc := container.Document()

	table := doc.CreateElement("table")
	table.SetAttr("border", "1")
	table.SetAttr("cellspacing", "0")
	if r.style != "" {
		table.SetAttr("style", r.style)
	}
	container.Append(table)

	caption := doc.CreateElement("caption")
	caption.AppendText(r.Caption(resp))
	table.Append(caption)

	top := doc.CreateElement("tr")
	table.Append(top)
	for _, col := range resp.Columns {
		th := doc.CreateElement("th")
		th.AppendText(col.Header)
		top.Append(th)
	}

	for _, row := range resp.Rows {
		tr := doc.CreateElement("tr")
		table.Append(tr)
		for _, col := range resp.Columns {
			td := doc.CreateElement("td")
			td.AppendText(row.Cell(col))
			tr.Append(td)
		}
	}
}

func updateControls(v View, resp *PageResponse) {
	input := v.PageInput()
	if resp.TotalPagesCount > 0 {
		input.SetAttr("max", strconv.Itoa(resp.TotalPagesCount))
	} else {
		input.RemoveAttr("max")
	}
	// Older endpoints omit page_number; keep what the user asked for then.
	if resp.PageNumber != 0 {
		input.SetValue(strconv.Itoa(resp.PageNumber))
	}

	atStart := resp.FirstShown <= 1
	v.FirstButton().SetDisabled(atStart)
	v.PrevButton().SetDisabled(atStart)

	atEnd := resp.LastShown >= resp.TotalRowsCount
	v.NextButton().SetDisabled(atEnd)
	v.LastButton().SetDisabled(atEnd)
}
