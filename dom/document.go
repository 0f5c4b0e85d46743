// Package dom is a small in-process document model on top of golang.org/x/net/html.
// It exposes the handful of browser operations a list view needs: lookup by id,
// attribute and value access, click handlers and subtree replacement.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNotFound is returned when a required element is missing from the document.
var ErrNotFound = errors.New("element not found")

// Document owns a parsed HTML tree and the event handlers bound to its nodes.
type Document struct {
	root     *html.Node
	handlers map[*html.Node][]func()
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return newDocument(root), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(src string) (*Document, error) {
	return Parse(strings.NewReader(src))
}

// NewDocument returns an empty html/head/body document.
func NewDocument() *Document {
	doc, _ := ParseString("<!DOCTYPE html><html><head></head><body></body></html>")
	return doc
}

func newDocument(root *html.Node) *Document {
	return &Document{root: root, handlers: make(map[*html.Node][]func())}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Wrap binds an existing node of this document to an Element.
func (d *Document) Wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

// ElementByID returns the first element whose id attribute equals id.
func (d *Document) ElementByID(id string) (*Element, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	sel, err := cascadia.Parse("[id=" + cssString(id) + "]")
	if err != nil {
		return nil, fmt.Errorf("id %q: %w", id, err)
	}
	n := cascadia.Query(d.root, sel)
	if n == nil {
		return nil, fmt.Errorf("%w: #%s", ErrNotFound, id)
	}
	return d.Wrap(n), nil
}

// cssString quotes s as a CSS string token. Control characters become hex
// escapes.
func cssString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Query returns all elements matching a CSS selector group in tree order.
func (d *Document) Query(selector string) ([]*Element, error) {
	group, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	nodes := cascadia.QueryAll(d.root, group)
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.Wrap(n))
	}
	return out, nil
}

// Body returns the body element, creating nothing.
func (d *Document) Body() (*Element, error) {
	els, err := d.Query("body")
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: body", ErrNotFound)
	}
	return els[0], nil
}

// CreateElement allocates a detached element.
func (d *Document) CreateElement(tag string) *Element {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return d.Wrap(&html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))})
}

// CreateText allocates a detached text node.
func (d *Document) CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// Render serializes the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Element is a handle on one element node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Node exposes the underlying html node.
func (e *Element) Node() *html.Node { return e.node }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return strings.ToLower(e.node.Data) }

// ID returns the id attribute.
func (e *Element) ID() string { return getAttr(e.node, "id") }

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, val string) {
	for i, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			e.node.Attr[i].Val = val
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: strings.ToLower(name), Val: val})
}

// RemoveAttr drops every attribute with the given name.
func (e *Element) RemoveAttr(name string) {
	kept := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if !strings.EqualFold(a.Key, name) {
			kept = append(kept, a)
		}
	}
	e.node.Attr = kept
}

// Value returns the current value of a form control. For textarea it is the
// text content, for everything else the value attribute.
func (e *Element) Value() string {
	if e.Tag() == "textarea" {
		return e.Text()
	}
	return getAttr(e.node, "value")
}

// SetValue updates the current value of a form control.
func (e *Element) SetValue(v string) {
	if e.Tag() == "textarea" {
		e.Clear()
		e.AppendText(v)
		return
	}
	e.SetAttr("value", v)
}

// Disabled reports whether the disabled attribute is present.
func (e *Element) Disabled() bool { return e.HasAttr("disabled") }

// SetDisabled toggles the disabled attribute.
func (e *Element) SetDisabled(disabled bool) {
	if disabled {
		e.SetAttr("disabled", "disabled")
		return
	}
	e.RemoveAttr("disabled")
}

// Append moves child under e as its last child.
func (e *Element) Append(child *Element) {
	if child == nil {
		return
	}
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)
}

// AppendText appends a text node.
func (e *Element) AppendText(text string) {
	e.node.AppendChild(e.doc.CreateText(text))
}

// Clear removes every child node, forgetting handlers bound inside the subtree.
func (e *Element) Clear() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.doc.forget(c)
		e.node.RemoveChild(c)
		c = next
	}
}

// Remove detaches e from its parent.
func (e *Element) Remove() {
	if e.node.Parent != nil {
		e.doc.forget(e.node)
		e.node.Parent.RemoveChild(e.node)
	}
}

// Children returns the element children in order.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.Wrap(c))
		}
	}
	return out
}

// Text returns the concatenated text content of the subtree.
func (e *Element) Text() string {
	var b strings.Builder
	collectText(e.node, &b)
	return b.String()
}

// OuterHTML renders the element and its subtree.
func (e *Element) OuterHTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.node); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML renders the children of the element.
func (e *Element) InnerHTML() string {
	var buf bytes.Buffer
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// OnClick registers a click handler.
func (e *Element) OnClick(fn func()) {
	if fn == nil {
		return
	}
	e.doc.handlers[e.node] = append(e.doc.handlers[e.node], fn)
}

// Click runs the click handlers of e in registration order. Disabled
// controls swallow the click.
func (e *Element) Click() {
	if e.Disabled() {
		return
	}
	for _, fn := range e.doc.handlers[e.node] {
		fn()
	}
}

func (d *Document) forget(n *html.Node) {
	delete(d.handlers, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.forget(c)
	}
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
