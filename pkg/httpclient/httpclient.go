// Package httpclient provides the request builder and transport call shared by
// the tool adapters.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agenttools/pkg/metricskey"
	"github.com/effective-security/xlog"
	"github.com/google/go-querystring/query"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agenttools", "httpclient")

// Doer performs a HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes a call to an upstream API.
type Request struct {
	Method string
	URL    string
	// Query is either url.Values or a struct with `url` tags
	Query any
	// Body is encoded as JSON when not nil
	Body any
	// Token is sent as a Bearer token when not empty
	Token  string
	Header map[string]string
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// OK returns true for 2xx responses
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// StatusText returns the reason phrase, without the code.
func (r *Response) StatusText() string {
	if _, text, ok := strings.Cut(r.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(r.StatusCode)
}

// New creates http.Request from r
func New(ctx context.Context, r *Request) (*http.Request, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}

	if r.Query != nil {
		var values url.Values
		switch q := r.Query.(type) {
		case url.Values:
			values = q
		default:
			values, err = query.Values(r.Query)
			if err != nil {
				return nil, errors.Wrap(err, "failed to encode query")
			}
		}
		if len(values) > 0 {
			u.RawQuery = values.Encode()
		}
	}

	var body io.Reader
	if r.Body != nil {
		js, err := json.Marshal(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request body")
		}
		body = bytes.NewReader(js)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Do sends the request and reads the whole response body.
// Non-2xx responses are not errors, check Response.OK.
func Do(ctx context.Context, client Doer, r *Request) (*Response, error) {
	req, err := New(ctx, r)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client = http.DefaultClient
	}

	host := req.URL.Host
	logger.ContextKV(ctx, xlog.DEBUG, "method", req.Method, "host", host, "path", req.URL.Path)

	started := time.Now()
	resp, err := client.Do(req)
	metricskey.PerfUpstreamRequest.MeasureSince(started, host)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	metricskey.StatsUpstreamResponses.IncrCounter(1, host, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}, nil
}
