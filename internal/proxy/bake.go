package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"listview/ajax"
	"listview/dom"
	"listview/widget"
)

const (
	navParam    = "nav"
	markerParam = "__lv"
	noticeClass = "listview-notice"
)

var (
	errNoListView = errors.New("page has no list view form")
	errNoEndpoint = errors.New("rows endpoint not found")

	rowsCall = regexp.MustCompile(`getTableRows\(\s*['"]([^'"]+)['"]`)
)

type bakeRequest struct {
	Target    string
	Nav       string
	Query     url.Values
	ClientKey string
	RequestID string
	Header    http.Header
}

type bakeResult struct {
	URL      string
	Endpoint string
	Body     []byte
	Rendered int
	Notices  []string
}

// bake loads a list page, runs the list view against it server side and
// returns the page with the table filled in and the controls turned into a
// plain GET form back to this proxy.
func (s *Server) bake(ctx context.Context, br bakeRequest) (*bakeResult, error) {
	site := s.sites.Find(br.Target)
	hdr := siteHeaders(br.Header, site)
	jar := s.cookieJars.Get(br.ClientKey)
	client := s.upstreamClient(jar)

	page, err := s.loadPage(ctx, br, client, jar, hdr, site)
	if err != nil {
		return nil, err
	}
	if site.mode() == ModePass {
		return &bakeResult{URL: page.URL, Body: page.Body}, nil
	}

	doc, err := dom.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, err
	}
	ids := s.cfg.IDs
	form, err := doc.ElementByID(ids.Form)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", page.URL, errNoListView)
	}
	endpoint, err := discoverEndpoint(doc, ids, page.URL, site)
	if err != nil {
		return nil, err
	}
	applyOverrides(form, br.Query)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()
	loop := widget.NewLoop()
	res := &bakeResult{URL: page.URL, Endpoint: endpoint}
	ctrl, err := widget.New(runCtx, doc, widget.Config{
		URL:      endpoint,
		IDs:      ids,
		Host:     &ajax.Host{Client: client, Events: loop, Header: rowsHeader(jar, page.URL, hdr)},
		Renderer: s.renderer,
		Notifier: widget.NotifierFunc(func(msg string) { res.Notices = append(res.Notices, msg) }),
		Logger:   s.logger,
		Trace: func(req *ajax.Request) {
			if s.cfg.Debug {
				dumpRows(s.logger, br.RequestID, req)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	navigate(ctrl, br.Nav)
	if err := loop.RunUntilIdle(runCtx); err != nil {
		s.logger.Printf("BAKE %s %s: %v", br.RequestID, endpoint, err)
		res.Notices = append(res.Notices, widget.FailureMessage)
	}
	if err := ctrl.Err(); err != nil && len(res.Notices) == 0 {
		res.Notices = append(res.Notices, widget.FailureMessage)
	}
	res.Rendered = ctrl.Rendered()

	rewrite(doc, ids, page.URL, res.Notices)
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, err
	}
	res.Body = buf.Bytes()
	return res, nil
}

// loadPage fetches the list page. Pager clicks reuse a recent copy.
func (s *Server) loadPage(ctx context.Context, br bakeRequest, client *http.Client, jar http.CookieJar, hdr http.Header, site *SiteConfig) (*upstreamPage, error) {
	if br.Nav != "" {
		if page, ok := s.cache.Select(br.ClientKey, br.Target); ok {
			return page, nil
		}
	}
	var page *upstreamPage
	var err error
	if site.mode() == ModeJS && s.baker != nil {
		page, err = s.baker.Snapshot(ctx, br.Target, hdr, jar, site.WaitSelector)
	} else {
		page, err = s.fetchPage(ctx, client, br.Target, hdr)
	}
	if err != nil {
		return nil, err
	}
	s.cache.Store(br.ClientKey, br.Target, page)
	return page, nil
}

// discoverEndpoint finds the rows URL: the site config wins, then the
// getTableRows('<url>') call of the load trigger, then any such call on the
// page.
func discoverEndpoint(doc *dom.Document, ids widget.IDs, pageURL string, site *SiteConfig) (string, error) {
	if site != nil && strings.TrimSpace(site.Endpoint) != "" {
		return resolveURL(pageURL, site.Endpoint), nil
	}
	for _, id := range ids.Triggers {
		el, err := doc.ElementByID(id)
		if err != nil {
			continue
		}
		if onclick, ok := el.Attr("onclick"); ok {
			if m := rowsCall.FindStringSubmatch(onclick); m != nil {
				return resolveURL(pageURL, m[1]), nil
			}
		}
	}
	els, err := doc.Query("[onclick]")
	if err != nil {
		return "", err
	}
	for _, el := range els {
		onclick, _ := el.Attr("onclick")
		if m := rowsCall.FindStringSubmatch(onclick); m != nil {
			return resolveURL(pageURL, m[1]), nil
		}
	}
	return "", fmt.Errorf("%s: %w", pageURL, errNoEndpoint)
}

// rowsHeader is what a browser would add to the XHR: the page as Referer and
// Django's CSRF token when the page set one.
func rowsHeader(jar http.CookieJar, pageURL string, hdr http.Header) http.Header {
	out := http.Header{}
	out.Set("Referer", pageURL)
	out.Set("X-Requested-With", "XMLHttpRequest")
	if ua := hdr.Get("User-Agent"); ua != "" {
		out.Set("User-Agent", ua)
	}
	if lang := hdr.Get("Accept-Language"); lang != "" {
		out.Set("Accept-Language", lang)
	}
	if u, err := url.Parse(pageURL); err == nil && jar != nil {
		for _, c := range jar.Cookies(u) {
			if c.Name == "csrftoken" {
				out.Set("X-CSRFToken", c.Value)
			}
		}
	}
	return out
}

// applyOverrides copies submitted values into the form controls. Check
// boxes and radios are only touched when the marker field is present,
// since an unchecked box is simply absent from a submission.
func applyOverrides(form *dom.Element, q url.Values) {
	if len(q) == 0 {
		return
	}
	marked := q.Has(markerParam)
	seen := map[string]int{}
	for _, el := range dom.Controls(form) {
		name, _ := el.Attr("name")
		if name == "" {
			continue
		}
		vals, ok := q[name]
		switch el.Tag() {
		case "select":
			if ok || marked {
				selectOptions(el, vals)
			}
			continue
		case "textarea":
			if ok {
				el.SetValue(vals[0])
			}
			continue
		}
		typ, _ := el.Attr("type")
		switch strings.ToLower(strings.TrimSpace(typ)) {
		case "submit", "button", "reset", "image", "file":
		case "checkbox", "radio":
			if !marked {
				continue
			}
			v, has := el.Attr("value")
			if !has {
				v = "on"
			}
			if contains(vals, v) {
				el.SetAttr("checked", "checked")
			} else {
				el.RemoveAttr("checked")
			}
		default:
			if !ok {
				continue
			}
			i := seen[name]
			seen[name]++
			if i < len(vals) {
				el.SetValue(vals[i])
			}
		}
	}
}

func selectOptions(sel *dom.Element, vals []string) {
	doc := sel.Document()
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if strings.EqualFold(c.Data, "option") {
				opt := doc.Wrap(c)
				v, ok := opt.Attr("value")
				if !ok {
					v = strings.TrimSpace(opt.Text())
				}
				if contains(vals, v) {
					opt.SetAttr("selected", "selected")
				} else {
					opt.RemoveAttr("selected")
				}
				continue
			}
			visit(c)
		}
	}
	visit(sel.Node())
}

func contains(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

func navigate(ctrl *widget.Controller, nav string) {
	v := ctrl.View()
	switch strings.ToLower(strings.TrimSpace(nav)) {
	case "first":
		v.First.Click()
	case "prev":
		v.Prev.Click()
	case "next":
		v.Next.Click()
	case "last":
		v.Last.Click()
	default:
		ctrl.OnLoad()
	}
}

// rewrite makes the rendered page usable without scripts.
func rewrite(doc *dom.Document, ids widget.IDs, pageURL string, notices []string) {
	if scripts, err := doc.Query("script, noscript"); err == nil {
		for _, el := range scripts {
			el.Remove()
		}
	}
	stripHandlers(doc.Root())

	form, err := doc.ElementByID(ids.Form)
	if err != nil {
		return
	}
	form.SetAttr("method", "get")
	form.SetAttr("action", "/view")
	form.RemoveAttr("enctype")
	form.Append(hiddenInput(doc, "url", pageURL))
	form.Append(hiddenInput(doc, markerParam, "1"))

	buttons := []struct{ id, nav string }{
		{ids.First, "first"},
		{ids.Prev, "prev"},
		{ids.Next, "next"},
		{ids.Last, "last"},
	}
	for _, id := range ids.Triggers {
		buttons = append(buttons, struct{ id, nav string }{id, "refresh"})
	}
	for _, b := range buttons {
		el, err := doc.ElementByID(b.id)
		if err != nil {
			continue
		}
		el.SetAttr("type", "submit")
		el.SetAttr("name", navParam)
		el.SetAttr("value", b.nav)
		el.SetAttr("form", ids.Form)
	}

	if len(notices) == 0 {
		return
	}
	anchor := form.Node()
	if container, err := doc.ElementByID(ids.Container); err == nil {
		anchor = container.Node()
	}
	for _, msg := range notices {
		p := doc.CreateElement("p")
		p.SetAttr("class", noticeClass)
		p.AppendText(msg)
		if anchor.Parent != nil {
			anchor.Parent.InsertBefore(p.Node(), anchor)
		}
	}
}

func hiddenInput(doc *dom.Document, name, value string) *dom.Element {
	in := doc.CreateElement("input")
	in.SetAttr("type", "hidden")
	in.SetAttr("name", name)
	in.SetAttr("value", value)
	return in
}

func stripHandlers(n *html.Node) {
	if n.Type == html.ElementNode {
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Namespace == "" && strings.HasPrefix(strings.ToLower(a.Key), "on") {
				continue
			}
			if strings.EqualFold(a.Key, "href") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
				a.Val = "#"
			}
			kept = append(kept, a)
		}
		n.Attr = kept
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		stripHandlers(c)
	}
}
