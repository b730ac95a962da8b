package whttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultRetryMax = 1
	userAgent       = "creatorlive/1.0 (+https://github.com/sw33tLie/creatorlive)"
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Query   url.Values
	Headers []WHTTPHeader
	Body    io.Reader
}

type WHTTPRes struct {
	StatusCode int
	BodyString string
}

// StatusError is returned by CheckStatus for non-2xx answers.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, body)
}

// Options tunes the retrying client used for upstream calls.
type Options struct {
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt. Zero or
	// less disables retries.
	RetryMax int
	Proxy    string
}

var defaultClient = NewClient(Options{RetryMax: DefaultRetryMax})

// NewClient builds a retrying client. A zero Timeout means 5s per attempt.
func NewClient(opts Options) *retryablehttp.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	c := retryablehttp.NewClient()
	c.Logger = log.New(io.Discard, "", 0)
	c.RetryMax = opts.RetryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = opts.Timeout
	// Hand the last response back to the caller instead of a generic
	// "giving up" error so status codes stay visible.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err == nil {
			c.HTTPClient.Transport = &http.Transport{
				Proxy:           http.ProxyURL(proxyURL),
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
	}
	return c
}

// DefaultClient returns the package default client.
func DefaultClient() *retryablehttp.Client {
	return defaultClient
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (wRes *WHTTPRes, err error) {
	if client == nil {
		client = defaultClient
	}

	target := wReq.URL
	if len(wReq.Query) > 0 {
		target += "?" + wReq.Query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, target, wReq.Body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	// Set custom headers
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes = &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}
	return wRes, nil
}

// CheckStatus turns a non-2xx response into a *StatusError.
func CheckStatus(res *WHTTPRes) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{StatusCode: res.StatusCode, Body: res.BodyString}
	}
	return nil
}
