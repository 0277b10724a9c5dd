package httptask

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
)

// Response is the buffered result of a Request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Request is a dispatch.Task performing one HTTP call.
type Request struct {
	dispatch.BaseTask

	transport *Transport
	method    string
	url       string
	body      []byte
	dups      bool

	onResponse func(*Response)

	mu       sync.Mutex
	response *Response
}

// RequestOption configures a Request.
type RequestOption func(*Request)

func WithPriority(p dispatch.Priority) RequestOption {
	return func(r *Request) { r.SetPriority(p) }
}

func WithCategory(c dispatch.Category) RequestOption {
	return func(r *Request) { r.SetCategory(c) }
}

// WithBody sets the request payload. Nil leaves the request without a body.
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		if body != nil {
			r.body = bytes.Clone(body)
		}
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *Request) { r.SetHeader(key, value) }
}

// WithPausable lets a critical request preempt this one and restart it later.
func WithPausable() RequestOption {
	return func(r *Request) { r.SetPausable(true) }
}

// WithTaskTimeout overrides the manager's global timeout for this request.
func WithTaskTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		if d > 0 {
			r.SetTimeout(d)
		}
	}
}

// WithResponseHandler is called with every response, error statuses included.
func WithResponseHandler(fn func(*Response)) RequestOption {
	return func(r *Request) { r.onResponse = fn }
}

// AllowDuplicates lets the manager queue this request next to an equal one.
func AllowDuplicates() RequestOption {
	return func(r *Request) { r.dups = true }
}

// WithErrorHandler sets the handler for failures no error listener consumed.
func WithErrorHandler(fn func(error)) RequestOption {
	return func(r *Request) {
		r.OnIOError = fn
		r.OnRuntimeError = fn
	}
}

// NewRequest builds a request sent through t.
func (t *Transport) NewRequest(method, url string, opts ...RequestOption) *Request {
	r := &Request{transport: t, method: method, url: url}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Request) Method() string { return r.method }
func (r *Request) URL() string    { return r.url }

// Response returns the last response, nil before the request completed.
func (r *Request) Response() *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// Equal treats requests with the same method, URL and body as duplicates.
func (r *Request) Equal(other dispatch.Task) bool {
	o, ok := other.(*Request)
	if !ok {
		return false
	}
	return o.method == r.method && o.url == r.url && bytes.Equal(o.body, r.body)
}

func (r *Request) SupportsDuplicates() bool {
	return r.dups
}

// PerformOperation sends the request and buffers the response body,
// reporting transfer progress to the manager.
func (r *Request) PerformOperation(ctx context.Context) error {
	if r.transport == nil {
		return ErrNilTransport
	}

	req := r.transport.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaders(r.Headers())
	if r.body != nil {
		req.SetBody(r.body)
	}

	resp, err := req.Execute(r.method, r.url)
	if err != nil {
		return fmt.Errorf("httptask: %s %s: %w", r.method, r.url, err)
	}
	if r.body != nil {
		n := int64(len(r.body))
		dispatch.ReportProgress(ctx, dispatch.PhaseSending, n, n)
	}

	var body []byte
	if raw := resp.RawBody(); raw != nil {
		defer raw.Close()
		pr := &progressReader{ctx: ctx, r: raw, length: resp.RawResponse.ContentLength}
		if body, err = io.ReadAll(pr); err != nil {
			return fmt.Errorf("httptask: %s %s: reading body: %w", r.method, r.url, err)
		}
	}

	res := &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       body,
	}
	r.mu.Lock()
	r.response = res
	r.mu.Unlock()

	if r.onResponse != nil {
		r.onResponse(res)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return &StatusError{Method: r.method, URL: r.url, StatusCode: res.StatusCode}
	}
	return nil
}

// progressReader reports every read as receiving progress.
type progressReader struct {
	ctx    context.Context
	r      io.Reader
	length int64
	read   int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		dispatch.ReportProgress(p.ctx, dispatch.PhaseReceiving, p.length, p.read)
	}
	return n, err
}
