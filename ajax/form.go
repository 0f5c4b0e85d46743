package ajax

import (
	"fmt"
	"net/url"
	"strings"

	"listview/dom"
)

// ErrNotFound is returned when the form to serialize does not exist.
var ErrNotFound = dom.ErrNotFound

// SerializeForm snapshots the current field values of the form with the given
// id as URL-encoded key=value pairs, in declaration order. Repeated names are
// kept as separate pairs.
func SerializeForm(doc *dom.Document, formID string) ([]string, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: no document", ErrNotFound)
	}
	form, err := doc.ElementByID(formID)
	if err != nil {
		return nil, err
	}
	if form.Tag() != "form" {
		return nil, fmt.Errorf("%w: #%s is <%s>, not a form", ErrNotFound, formID, form.Tag())
	}
	fields := dom.FormData(form)
	pairs := make([]string, 0, len(fields))
	for _, f := range fields {
		pairs = append(pairs, url.QueryEscape(f.Name)+"="+url.QueryEscape(f.Value))
	}
	return pairs, nil
}

// EncodeBody joins serialized pairs into a request body.
func EncodeBody(pairs []string) string {
	return strings.Join(pairs, "&")
}
