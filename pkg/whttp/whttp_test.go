package whttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendHTTPRequestHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["user_login"])
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Query:   url.Values{"user_login": {"a", "b"}},
		Headers: []WHTTPHeader{{Name: "Authorization", Value: "Bearer abc"}},
	}, NewClient(Options{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"ok":true}`, res.BodyString)
	assert.NoError(t, CheckStatus(res))
}

func TestSendHTTPRequestRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := SendHTTPRequest(context.Background(), &WHTTPReq{Method: http.MethodGet, URL: srv.URL}, NewClient(Options{RetryMax: 1}))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(CheckStatus(res), &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestZeroRetryMaxMeansSingleAttempt(t *testing.T) {
	for _, retryMax := range []int{0, -1} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		res, err := SendHTTPRequest(context.Background(), &WHTTPReq{Method: http.MethodGet, URL: srv.URL}, NewClient(Options{RetryMax: retryMax}))
		srv.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
		assert.Equal(t, int32(1), calls.Load(), "retry_max %d", retryMax)
	}
}

func TestDefaultClientRetries(t *testing.T) {
	assert.Equal(t, DefaultRetryMax, DefaultClient().RetryMax)
}

func TestSendHTTPRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := SendHTTPRequest(context.Background(), &WHTTPReq{Method: http.MethodGet, URL: srv.URL},
		NewClient(Options{Timeout: 20 * time.Millisecond, RetryMax: -1}))
	assert.Error(t, err)
}
