// Package httpclient holds the resty-backed HTTP plumbing shared by page fetchers,
// media downloads and outbound webhooks.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRetryWait = 500 * time.Millisecond
)

// Response is the part of an HTTP response that fetchers and downloaders read.
type Response interface {
	Body() []byte
	StatusCode() int
	Header(key string) string
}

// Client issues GET requests. Non-2xx statuses are returned as responses, not errors.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// Options tunes a RestyClient. Zero values select the defaults.
type Options struct {
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport error, a 429 or a 5xx.
	Retries   int
	RetryWait time.Duration
	// UserAgent is sent unless a request sets its own.
	UserAgent string
}

// RestyClient implements Client on top of resty.
type RestyClient struct {
	client *resty.Client
}

// New builds a RestyClient from opts.
func New(opts Options) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(opts)}
}

// NewRestyClient returns a RestyClient with the given timeout and no retries.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return New(Options{Timeout: timeout})
}

// NewRestyHTTPClient returns the underlying resty client for callers that need other verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(Options{Timeout: timeout})
}

func newRestyBaseClient(opts Options) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	c := resty.New().SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		c.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Retries > 0 {
		wait := opts.RetryWait
		if wait <= 0 {
			wait = defaultRetryWait
		}
		c.SetRetryCount(opts.Retries).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(4 * wait).
			AddRetryCondition(retryable)
	}
	return c
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Get performs a GET with ctx and the extra headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return restyResponse{resp: resp}, nil
}

type restyResponse struct {
	resp *resty.Response
}

func (r restyResponse) Body() []byte             { return r.resp.Body() }
func (r restyResponse) StatusCode() int          { return r.resp.StatusCode() }
func (r restyResponse) Header(key string) string { return r.resp.Header().Get(key) }
