package dom

import (
	"path"
	"strings"

	"golang.org/x/net/html"
)

// Field is one entry of a form data set.
type Field struct {
	Name  string
	Value string
}

// FormData builds the data set a browser would submit for form without a
// submitter, in tree order. Controls outside the form that point at it via
// the form attribute are included at their document position.
func FormData(form *Element) []Field {
	if form == nil {
		return nil
	}
	formID := form.ID()
	var out []Field
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && isListedControl(n) && ownedBy(n, form.node, formID) {
			out = appendControl(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(form.doc.root)
	return out
}

// Controls returns the input, select and textarea elements owned by form,
// disabled or not, in tree order.
func Controls(form *Element) []*Element {
	if form == nil {
		return nil
	}
	formID := form.ID()
	var out []*Element
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && isListedControl(n) && ownedBy(n, form.node, formID) {
			out = append(out, form.doc.Wrap(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(form.doc.root)
	return out
}

func isListedControl(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "input", "select", "textarea":
		return true
	}
	return false
}

func ownedBy(n, form *html.Node, formID string) bool {
	if owner := strings.TrimSpace(getAttr(n, "form")); hasAttr(n, "form") {
		return formID != "" && owner == formID
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && strings.EqualFold(p.Data, "form") {
			return p == form
		}
	}
	return false
}

func appendControl(out []Field, n *html.Node) []Field {
	name := getAttr(n, "name")
	if name == "" || isDisabledControl(n) {
		return out
	}
	switch strings.ToLower(n.Data) {
	case "textarea":
		var b strings.Builder
		collectText(n, &b)
		return append(out, Field{Name: name, Value: normalizeNewlines(b.String())})
	case "select":
		return appendSelect(out, name, n)
	}
	typ := strings.ToLower(strings.TrimSpace(getAttr(n, "type")))
	switch typ {
	case "submit", "button", "reset", "image":
		return out
	case "checkbox", "radio":
		if !hasAttr(n, "checked") {
			return out
		}
		val := getAttr(n, "value")
		if !hasAttr(n, "value") {
			val = "on"
		}
		return append(out, Field{Name: name, Value: val})
	case "file":
		// Only the file name survives outside a browser.
		val := strings.ReplaceAll(getAttr(n, "value"), `\`, "/")
		if val != "" {
			val = path.Base(val)
		}
		return append(out, Field{Name: name, Value: val})
	}
	return append(out, Field{Name: name, Value: getAttr(n, "value")})
}

func appendSelect(out []Field, name string, sel *html.Node) []Field {
	var options []*html.Node
	var collect func(*html.Node, bool)
	collect = func(n *html.Node, groupDisabled bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch strings.ToLower(c.Data) {
			case "option":
				if !groupDisabled && !hasAttr(c, "disabled") {
					options = append(options, c)
				}
			case "optgroup":
				collect(c, groupDisabled || hasAttr(c, "disabled"))
			}
		}
	}
	collect(sel, false)

	multiple := hasAttr(sel, "multiple")
	picked := false
	for _, opt := range options {
		if !hasAttr(opt, "selected") {
			continue
		}
		out = append(out, Field{Name: name, Value: optionValue(opt)})
		picked = true
		if !multiple {
			break
		}
	}
	if !picked && !multiple && len(options) > 0 {
		out = append(out, Field{Name: name, Value: optionValue(options[0])})
	}
	return out
}

func optionValue(opt *html.Node) string {
	if hasAttr(opt, "value") {
		return getAttr(opt, "value")
	}
	var b strings.Builder
	collectText(opt, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func isDisabledControl(n *html.Node) bool {
	if hasAttr(n, "disabled") {
		return true
	}
	child := n
	for p := n.Parent; p != nil; child, p = p, p.Parent {
		if p.Type != html.ElementNode || !strings.EqualFold(p.Data, "fieldset") || !hasAttr(p, "disabled") {
			continue
		}
		if !insideFirstLegend(p, child) {
			return true
		}
	}
	return false
}

// insideFirstLegend reports whether child (a direct child of fieldset on the
// path to the control) is the fieldset's first legend.
func insideFirstLegend(fieldset, child *html.Node) bool {
	for c := fieldset.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "legend") {
			return c == child
		}
	}
	return false
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
