package proxy

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// jsBaker snapshots pages whose list form is itself built by scripts. The
// snapshot then goes through the same bake as a plain fetch.
type jsBaker struct {
	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
}

func newJSBaker(logger *log.Logger) *jsBaker {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &jsBaker{allocator: allocCtx, cancel: cancel, logger: logger}
}

func (b *jsBaker) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Snapshot loads target in headless Chrome with the jar's cookies, waits for
// waitSelector when given and returns the resulting DOM. Cookies the page
// sets are stored back into jar.
func (b *jsBaker) Snapshot(ctx context.Context, target string, hdr http.Header, jar http.CookieJar, waitSelector string) (*upstreamPage, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("js snapshot: empty target url")
	}
	taskCtx, cancelBrowser := chromedp.NewContext(b.allocator)
	defer cancelBrowser()
	taskCtx, cancel := context.WithTimeout(taskCtx, 25*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	requestHeaders := cloneHeader(hdr)
	var finalURL, htmlContent string
	var mu sync.Mutex
	var status int64
	var mainRequestID network.RequestID

	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Type == network.ResourceTypeDocument && mainRequestID == "" {
				mainRequestID = e.RequestID
			}
		case *network.EventResponseReceived:
			if e.RequestID == mainRequestID && e.Response != nil {
				status = e.Response.Status
			}
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if ua := requestHeaders.Get("User-Agent"); ua != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(ua).Do(ctx)
		}))
		requestHeaders.Del("User-Agent")
	}
	if extra := extraHeaders(requestHeaders); len(extra) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(extra).Do(ctx)
		}))
	}
	if params := cookieParams(jar, target); len(params) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(params).Do(ctx)
		}))
	}
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if sel := strings.TrimSpace(waitSelector); sel != "" {
		actions = append(actions, chromedp.WaitVisible(sel, chromedp.ByQuery))
	}
	var browserCookies []*network.Cookie
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			browserCookies, err = network.GetCookies().WithURLs([]string{firstNonEmpty(finalURL, target)}).Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("js snapshot %s: %w", target, err)
	}
	finalURL = firstNonEmpty(finalURL, target)
	if jar != nil && len(browserCookies) > 0 {
		if u, err := url.Parse(finalURL); err == nil {
			cookies := make([]*http.Cookie, 0, len(browserCookies))
			for _, c := range browserCookies {
				if hc := cookieFromNetwork(c); hc != nil {
					cookies = append(cookies, hc)
				}
			}
			jar.SetCookies(u, cookies)
		}
	}
	mu.Lock()
	code := int(status)
	mu.Unlock()
	if b.logger != nil {
		b.logger.Printf("JS %s status=%d %d bytes", finalURL, code, len(htmlContent))
	}
	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	return &upstreamPage{URL: finalURL, Status: code, Header: header, Body: []byte(htmlContent)}, nil
}

func extraHeaders(h http.Header) network.Headers {
	extra := network.Headers{}
	for k, vs := range h {
		name := http.CanonicalHeaderKey(k)
		if name == "Content-Length" || len(vs) == 0 {
			continue
		}
		extra[name] = strings.Join(vs, ", ")
	}
	return extra
}

func cookieParams(jar http.CookieJar, target string) []*network.CookieParam {
	if jar == nil {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	cookies := jar.Cookies(u)
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   firstNonEmpty(c.Domain, u.Hostname()),
			Path:     firstNonEmpty(c.Path, "/"),
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires.UTC())
			param.Expires = &exp
		}
		params = append(params, param)
	}
	return params
}

func cookieFromNetwork(c *network.Cookie) *http.Cookie {
	if c == nil {
		return nil
	}
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
	}
	if !c.Session && c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		hc.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	switch c.SameSite {
	case network.CookieSameSiteLax:
		hc.SameSite = http.SameSiteLaxMode
	case network.CookieSameSiteStrict:
		hc.SameSite = http.SameSiteStrictMode
	case network.CookieSameSiteNone:
		hc.SameSite = http.SameSiteNoneMode
	}
	return hc
}
