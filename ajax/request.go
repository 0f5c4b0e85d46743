// Package ajax builds asynchronous form POST requests whose progress is
// reported through callbacks on the host's event thread.
package ajax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ContentType is sent with every request body.
const ContentType = "application/x-www-form-urlencoded; charset=utf-8"

var (
	// ErrConfig is returned when a request is built without a URL.
	ErrConfig = errors.New("url is not provided")
	// ErrEnvironment is returned when the host cannot perform asynchronous HTTP.
	ErrEnvironment = errors.New("asynchronous http is not available")
)

// ReadyState follows the XMLHttpRequest transport states.
type ReadyState int

const (
	Unsent ReadyState = iota
	Opened
	HeadersReceived
	Loading
	Done
)

func (s ReadyState) String() string {
	switch s {
	case Unsent:
		return "UNSENT"
	case Opened:
		return "OPENED"
	case HeadersReceived:
		return "HEADERS_RECEIVED"
	case Loading:
		return "LOADING"
	case Done:
		return "DONE"
	}
	return fmt.Sprintf("ReadyState(%d)", int(s))
}

// HTTPDoer is the transport used to perform requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Dispatcher is the host event queue. Go runs work off the event thread;
// work hands results back through post, which queues a callback to run on
// the event thread.
type Dispatcher interface {
	Go(work func(post func(func())))
}

// Host bundles the capabilities a request needs from its environment.
type Host struct {
	Client HTTPDoer
	Events Dispatcher
	// Header is added to every request, e.g. Referer or User-Agent.
	Header http.Header
}

// Handler observes a request state change.
type Handler func(*Request)

// Options configure a single request.
type Options struct {
	URL        string
	OnSuccess  Handler
	OnFailure  Handler
	OnNotReady Handler
	Header     http.Header
}

// TransportError describes a request that finished without a 200 status.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("post %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("post %s: status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Request is a configured POST. All state is read and written on the event
// thread; only the transport itself runs elsewhere.
type Request struct {
	host   *Host
	opts   Options
	header http.Header

	sent       bool
	state      ReadyState
	status     int
	respHeader http.Header
	body       []byte
	err        error
}

// NewRequest validates opts and returns an opened, unsent request.
func NewRequest(host *Host, opts Options) (*Request, error) {
	opts.URL = strings.TrimSpace(opts.URL)
	if opts.URL == "" {
		return nil, ErrConfig
	}
	if host == nil || host.Client == nil || host.Events == nil {
		return nil, ErrEnvironment
	}
	header := http.Header{}
	copyHeader(header, host.Header)
	copyHeader(header, opts.Header)
	header.Set("Content-Type", ContentType)
	return &Request{
		host:   host,
		opts:   opts,
		header: header,
		state:  Opened,
	}, nil
}

// URL returns the target URL.
func (r *Request) URL() string { return r.opts.URL }

// Header returns the request headers that will be sent.
func (r *Request) Header() http.Header { return r.header }

// ReadyState returns the current transport state.
func (r *Request) ReadyState() ReadyState { return r.state }

// Status returns the HTTP status, 0 until headers arrive or after a network error.
func (r *Request) Status() int { return r.status }

// ResponseHeader returns the response headers once received.
func (r *Request) ResponseHeader() http.Header { return r.respHeader }

// ResponseText returns the body received so far.
func (r *Request) ResponseText() string { return string(r.body) }

// ResponseBody returns the raw body received so far.
func (r *Request) ResponseBody() []byte { return r.body }

// Err returns the transport error, if any.
func (r *Request) Err() error { return r.err }

// Failure reports why a finished request failed, nil when it succeeded or is
// still in flight.
func (r *Request) Failure() *TransportError {
	if r.state != Done || (r.status == http.StatusOK && r.err == nil) {
		return nil
	}
	return &TransportError{URL: r.opts.URL, Status: r.status, Err: r.err}
}

// Send starts the POST with body. It returns immediately; callbacks fire on
// the event thread. A request is sent at most once.
func (r *Request) Send(ctx context.Context, body string) {
	if r.sent {
		return
	}
	r.sent = true
	if ctx == nil {
		ctx = context.Background()
	}
	client := r.host.Client
	target := r.opts.URL
	header := r.header.Clone()

	r.host.Events.Go(func(post func(func())) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
		if err != nil {
			post(func() { r.finish(0, nil, nil, err) })
			return
		}
		req.Header = header
		resp, err := client.Do(req)
		if err != nil {
			post(func() { r.finish(0, nil, nil, err) })
			return
		}
		defer resp.Body.Close()

		status, respHeader := resp.StatusCode, resp.Header.Clone()
		post(func() {
			r.status, r.respHeader = status, respHeader
			r.transition(HeadersReceived)
		})
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			post(func() { r.finish(0, respHeader, data, err) })
			return
		}
		post(func() {
			r.body = data
			r.transition(Loading)
		})
		post(func() { r.finish(status, respHeader, data, nil) })
	})
}

func (r *Request) finish(status int, header http.Header, body []byte, err error) {
	r.status = status
	r.respHeader = header
	r.body = body
	r.err = err
	r.transition(Done)
}

func (r *Request) transition(s ReadyState) {
	r.state = s
	if s != Done {
		if r.opts.OnNotReady != nil {
			r.opts.OnNotReady(r)
		}
		return
	}
	if r.status == http.StatusOK && r.err == nil {
		if r.opts.OnSuccess != nil {
			r.opts.OnSuccess(r)
		}
		return
	}
	if r.opts.OnFailure != nil {
		r.opts.OnFailure(r)
	}
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}
