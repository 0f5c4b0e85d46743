package pager

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInput struct{ v string }

func (f *fakeInput) Value() string     { return f.v }
func (f *fakeInput) SetValue(v string) { f.v = v }

type recorder struct {
	in    *fakeInput
	calls []string
}

func (r *recorder) fetch(url string) { r.calls = append(r.calls, url+"@"+r.in.v) }

func newPager(v string) (*Pager, *recorder) {
	rec := &recorder{in: &fakeInput{v: v}}
	return New(rec.in, rec.fetch), rec
}

func TestNavigation(t *testing.T) {
	cases := []struct {
		name  string
		start string
		op    func(*Pager) error
		want  string
	}{
		{"next", "2", func(p *Pager) error { return p.Next("/rows/") }, "/rows/@3"},
		{"prev", "2", func(p *Pager) error { return p.Prev("/rows/") }, "/rows/@1"},
		{"prev below one is not clamped", "1", func(p *Pager) error { return p.Prev("/rows/") }, "/rows/@0"},
		{"next past end is not clamped", "99", func(p *Pager) error { return p.Next("/rows/") }, "/rows/@100"},
		{"first", "5", func(p *Pager) error { p.First("/rows/"); return nil }, "/rows/@1"},
		{"last", "5", func(p *Pager) error { p.Last("/rows/"); return nil }, "/rows/@-1"},
		{"goto", "5", func(p *Pager) error { p.GoToPage("/rows/", 12); return nil }, "/rows/@12"},
		{"lenient parse", " 4abc", func(p *Pager) error { return p.Shift("/rows/", 2) }, "/rows/@6"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, rec := newPager(tc.start)
			require.NoError(t, tc.op(p))
			assert.Equal(t, []string{tc.want}, rec.calls)
		})
	}
}

func TestShiftInvalidDoesNotFetch(t *testing.T) {
	p, rec := newPager("")
	err := p.Next("/rows/")
	assert.True(t, errors.Is(err, ErrInvalidPage))
	assert.Empty(t, rec.calls)
	assert.Equal(t, "", rec.in.v)
}

func TestParseInt(t *testing.T) {
	cases := map[string]int{"7": 7, "-1": -1, "+3": 3, "  12px": 12, "\n0": 0}
	for in, want := range cases {
		got, err := ParseInt(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "abc", "-", " +x"} {
		_, err := ParseInt(bad)
		assert.ErrorIs(t, err, ErrInvalidPage, bad)
	}
}

func TestParseTarget(t *testing.T) {
	tg, err := ParseTarget("-5")
	require.NoError(t, err)
	assert.Equal(t, LastPage(), tg)
	assert.Equal(t, "-1", tg.Wire())
	assert.Equal(t, "last", tg.String())

	tg, err = ParseTarget("3")
	require.NoError(t, err)
	assert.Equal(t, Page(3), tg)
	assert.Equal(t, "3", tg.Wire())

	_, err = ParseTarget("x")
	assert.Error(t, err)
}

func TestNilFetch(t *testing.T) {
	in := &fakeInput{v: "1"}
	p := New(in, nil)
	require.NoError(t, p.Next("/rows/"))
	assert.Equal(t, "2", in.v)
	cur, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, cur)
}
