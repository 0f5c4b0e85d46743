// Package pager moves a list view between pages by rewriting its page-number
// control and asking for a fresh fetch.
package pager

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPage is returned when the current page value has no leading integer.
var ErrInvalidPage = errors.New("page number is not a number")

// lastPageWire is the page value the server reads as "last page".
const lastPageWire = -1

// Kind distinguishes page targets.
type Kind int

const (
	Absolute Kind = iota
	Last
)

// Target is the page a navigation asks for.
type Target struct {
	Kind Kind
	N    int
}

// Page targets page n. No range checks are made; the server decides.
func Page(n int) Target { return Target{Kind: Absolute, N: n} }

// LastPage targets the last page whatever its number.
func LastPage() Target { return Target{Kind: Last} }

// Wire returns the form value for t.
func (t Target) Wire() string {
	if t.Kind == Last {
		return strconv.Itoa(lastPageWire)
	}
	return strconv.Itoa(t.N)
}

func (t Target) String() string {
	if t.Kind == Last {
		return "last"
	}
	return strconv.Itoa(t.N)
}

// ParseTarget reads a form value back into a Target. Negative numbers mean
// the last page.
func ParseTarget(s string) (Target, error) {
	n, err := ParseInt(s)
	if err != nil {
		return Target{}, err
	}
	if n < 0 {
		return LastPage(), nil
	}
	return Page(n), nil
}

// ParseInt parses the leading integer of s the way browsers parse a page
// field: surrounding spaces and trailing garbage are ignored.
func ParseInt(s string) (int, error) {
	s = strings.TrimLeft(s, " \t\r\n\f")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPage, s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPage, s)
	}
	return n, nil
}

// Input is the control holding the current page number.
type Input interface {
	Value() string
	SetValue(string)
}

// Pager drives page navigation. Every operation writes the input first and
// then calls fetch with the endpoint URL.
type Pager struct {
	input Input
	fetch func(url string)
}

// New returns a pager over input. fetch is invoked after each change.
func New(input Input, fetch func(url string)) *Pager {
	return &Pager{input: input, fetch: fetch}
}

// Current returns the page currently held by the input.
func (p *Pager) Current() (int, error) {
	return ParseInt(p.input.Value())
}

// GoTo writes t to the input and fetches.
func (p *Pager) GoTo(url string, t Target) {
	p.input.SetValue(t.Wire())
	if p.fetch != nil {
		p.fetch(url)
	}
}

// GoToPage is GoTo with an absolute page.
func (p *Pager) GoToPage(url string, n int) { p.GoTo(url, Page(n)) }

// Shift moves delta pages from the current one. Out of range results are
// sent as is.
func (p *Pager) Shift(url string, delta int) error {
	cur, err := p.Current()
	if err != nil {
		return err
	}
	p.GoToPage(url, cur+delta)
	return nil
}

// Next moves one page forward.
func (p *Pager) Next(url string) error { return p.Shift(url, 1) }

// Prev moves one page back.
func (p *Pager) Prev(url string) error { return p.Shift(url, -1) }

// First goes to page 1.
func (p *Pager) First(url string) { p.GoToPage(url, 1) }

// Last asks for the last page.
func (p *Pager) Last(url string) { p.GoTo(url, LastPage()) }
