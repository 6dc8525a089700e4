package gerbango

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const maxResponseSize = 10 * 1024 * 1024

// Upstream issues authenticated HTTP calls against the analysis-service API
// and classifies failures into the library's error taxonomy. Read operations
// are GETs with arguments as query parameters; mutations are POST/PUT with a
// JSON body.
type Upstream struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewUpstream creates an upstream caller for the given base URL and bearer
// credential.
func NewUpstream(baseURL, token string, httpClient *http.Client) *Upstream {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Upstream{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Call performs one attempt of op with the given request. The returned error
// is always a *Error carrying the classification Kind; the response body of
// failures is drained so connections are reused.
func (u *Upstream) Call(ctx context.Context, op Operation, req Request) (*Result, error) {
	httpReq, err := u.buildRequest(ctx, op, req)
	if err != nil {
		return nil, &Error{
			Kind:    KindFatal,
			Op:      op.Name,
			Message: "malformed request",
			Cause:   err,
		}
	}

	resp, err := u.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{
				Kind:    KindCancelled,
				Op:      op.Name,
				Message: "call cancelled",
				Cause:   err,
			}
		}
		return nil, &Error{
			Kind:    KindTransient,
			Op:      op.Name,
			Message: "upstream request failed",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{
			Kind:    KindTransient,
			Op:      op.Name,
			Message: "reading upstream response failed",
			Cause:   err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Result{
			Payload:    body,
			StatusCode: resp.StatusCode,
		}, nil
	}

	return nil, u.classifyStatus(op, resp, body)
}

func (u *Upstream) buildRequest(ctx context.Context, op Operation, req Request) (*http.Request, error) {
	target := u.baseURL + op.Path

	if op.Method == http.MethodGet || op.Method == "" {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		httpReq.URL.RawQuery = encodeQueryArgs(req.Args)
		u.setHeaders(httpReq)
		return httpReq, nil
	}

	payload, err := json.Marshal(req.Args)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, op.Method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	u.setHeaders(httpReq)
	return httpReq, nil
}

func (u *Upstream) setHeaders(req *http.Request) {
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	req.Header.Set("Accept", "application/json")
}

// encodeQueryArgs renders arguments as query parameters in sorted key order.
// Scalars render via fmt; composite values fall back to their JSON encoding.
func encodeQueryArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := args[k].(type) {
		case string:
			values.Set(k, v)
		case nil:
			values.Set(k, "")
		case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			values.Set(k, fmt.Sprintf("%v", v))
		default:
			if encoded, err := json.Marshal(v); err == nil {
				values.Set(k, string(encoded))
			}
		}
	}
	return values.Encode()
}

func (u *Upstream) classifyStatus(op Operation, resp *http.Response, body []byte) *Error {
	message := strings.TrimSpace(string(body))
	if len(message) > 200 {
		message = message[:200]
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimited,
			Op:         op.Name,
			Message:    message,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{
			Kind:       KindFatal,
			Op:         op.Name,
			Message:    message,
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &Error{
			Kind:       KindClientError,
			Op:         op.Name,
			Message:    message,
			StatusCode: resp.StatusCode,
		}
	default:
		return &Error{
			Kind:       KindTransient,
			Op:         op.Name,
			Message:    message,
			StatusCode: resp.StatusCode,
		}
	}
}
