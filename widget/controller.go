// Package widget wires a list view page together: the load trigger, the pager
// buttons, the rows request and the table renderer.
package widget

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"listview/ajax"
	"listview/dom"
	"listview/pager"
	"listview/table"
)

// FailureMessage is shown when a rows request fails.
const FailureMessage = "Failure!"

// IDs names the elements a list view page provides.
type IDs struct {
	Form      string
	Container string
	PageInput string
	First     string
	Prev      string
	Next      string
	Last      string
	// Triggers are tried in order; the first present one loads the table.
	Triggers []string
}

// DefaultIDs returns the element ids rendered by the list view templates.
func DefaultIDs() IDs {
	return IDs{
		Form:      "list_view_form",
		Container: "list_view_table_div",
		PageInput: "id_page_number",
		First:     "first_page",
		Prev:      "prev_page",
		Next:      "next_page",
		Last:      "last_page",
		Triggers:  []string{"refresh", "submit"},
	}
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Config wires a Controller.
type Config struct {
	// URL is the rows endpoint every control posts to.
	URL      string
	IDs      IDs
	Host     *ajax.Host
	Renderer *table.Renderer
	Notifier Notifier
	Logger   *log.Logger
	// Trace, when set, sees every finished request.
	Trace func(*ajax.Request)
}

// Controller owns one list view on a document.
type Controller struct {
	ctx      context.Context
	doc      *dom.Document
	url      string
	ids      IDs
	host     *ajax.Host
	view     *table.Elements
	trigger  *dom.Element
	pager    *pager.Pager
	renderer *table.Renderer
	notifier Notifier
	logger   *log.Logger
	trace    func(*ajax.Request)

	rendered int
	lastErr  error
}

// New resolves the list view elements on doc and binds the pager and trigger
// click handlers. ctx bounds every request the controller sends.
func New(ctx context.Context, doc *dom.Document, cfg Config) (*Controller, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: no document", dom.ErrNotFound)
	}
	ids := cfg.IDs
	if ids.Form == "" {
		ids = DefaultIDs()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Renderer == nil {
		r, err := table.NewRenderer(table.Config{})
		if err != nil {
			return nil, err
		}
		cfg.Renderer = r
	}
	c := &Controller{
		ctx:      ctx,
		doc:      doc,
		url:      cfg.URL,
		ids:      ids,
		host:     cfg.Host,
		renderer: cfg.Renderer,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		trace:    cfg.Trace,
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(msg string) { c.logger.Printf("ALERT %s", msg) })
	}

	if _, err := doc.ElementByID(ids.Form); err != nil {
		return nil, err
	}
	view, err := resolveView(doc, ids)
	if err != nil {
		return nil, err
	}
	c.view = view
	for _, id := range ids.Triggers {
		if el, err := doc.ElementByID(id); err == nil {
			c.trigger = el
			break
		}
	}
	if c.trigger == nil {
		return nil, fmt.Errorf("%w: load trigger %v", dom.ErrNotFound, ids.Triggers)
	}

	c.pager = pager.New(view.Page, c.fetch)
	c.bind()
	return c, nil
}

func resolveView(doc *dom.Document, ids IDs) (*table.Elements, error) {
	v := &table.Elements{}
	targets := []struct {
		id  string
		dst **dom.Element
	}{
		{ids.Container, &v.Container},
		{ids.PageInput, &v.Page},
		{ids.First, &v.First},
		{ids.Prev, &v.Prev},
		{ids.Next, &v.Next},
		{ids.Last, &v.Last},
	}
	for _, t := range targets {
		el, err := doc.ElementByID(t.id)
		if err != nil {
			return nil, err
		}
		*t.dst = el
	}
	return v, nil
}

func (c *Controller) bind() {
	c.trigger.OnClick(func() { c.fetch(c.url) })
	c.view.First.OnClick(func() { c.pager.First(c.url) })
	c.view.Last.OnClick(func() { c.pager.Last(c.url) })
	c.view.Prev.OnClick(func() { c.record(c.pager.Prev(c.url)) })
	c.view.Next.OnClick(func() { c.record(c.pager.Next(c.url)) })
}

// URL returns the rows endpoint.
func (c *Controller) URL() string { return c.url }

// Pager returns the pager bound to the page input.
func (c *Controller) Pager() *pager.Pager { return c.pager }

// View returns the resolved elements.
func (c *Controller) View() *table.Elements { return c.view }

// Trigger returns the load trigger element.
func (c *Controller) Trigger() *dom.Element { return c.trigger }

// Rendered counts successful renders.
func (c *Controller) Rendered() int { return c.rendered }

// Err returns the last error raised by a click handler or response.
func (c *Controller) Err() error { return c.lastErr }

// OnLoad loads the first table by clicking the trigger.
func (c *Controller) OnLoad() {
	c.trigger.Click()
}

// FetchAndRender posts the current form to url; the response is rendered
// when it arrives on the event thread. Configuration errors are returned
// before anything is sent.
func (c *Controller) FetchAndRender(url string) error {
	pairs, err := ajax.SerializeForm(c.doc, c.ids.Form)
	if err != nil {
		return err
	}
	req, err := ajax.NewRequest(c.host, ajax.Options{
		URL:       url,
		OnSuccess: c.onSuccess,
		OnFailure: c.onFailure,
	})
	if err != nil {
		return err
	}
	c.logger.Printf("ROWS POST %s fields=%d", req.URL(), len(pairs))
	req.Send(c.ctx, ajax.EncodeBody(pairs))
	return nil
}

func (c *Controller) fetch(url string) {
	c.record(c.FetchAndRender(url))
}

func (c *Controller) record(err error) {
	if err == nil {
		return
	}
	c.lastErr = err
	c.logger.Printf("ROWS %s: %v", c.url, err)
}

func (c *Controller) onSuccess(req *ajax.Request) {
	if c.trace != nil {
		c.trace(req)
	}
	resp, err := table.Decode(bytes.NewReader(req.ResponseBody()))
	if err != nil {
		c.record(err)
		c.notifier.Notify(FailureMessage)
		return
	}
	if err := resp.Validate(); err != nil {
		c.logger.Printf("ROWS %s: suspicious response: %v", req.URL(), err)
	}
	if err := c.renderer.Render(c.view, resp); err != nil {
		c.record(err)
		return
	}
	c.rendered++
}

func (c *Controller) onFailure(req *ajax.Request) {
	if c.trace != nil {
		c.trace(req)
	}
	if fe := req.Failure(); fe != nil {
		c.record(fe)
	}
	c.notifier.Notify(FailureMessage)
}
