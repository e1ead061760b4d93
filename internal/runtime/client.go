package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"product-api/internal/invoke"
)

const (
	apiVersion = "2018-06-01"

	headerRequestID   = "Lambda-Runtime-Aws-Request-Id"
	headerDeadlineMS  = "Lambda-Runtime-Deadline-Ms"
	headerFunctionARN = "Lambda-Runtime-Invoked-Function-Arn"

	// UnknownRequestID is substituted when the control plane omits the
	// request id header.
	UnknownRequestID = "unknown"
)

// ErrMissingRuntimeAPI means the process was started outside a control plane
// and cannot run at all.
var ErrMissingRuntimeAPI = errors.New("AWS_LAMBDA_RUNTIME_API not set")

// Client speaks the control-plane invocation protocol. One client serves the
// whole process; invocations are sequential so no locking is needed.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient builds a client for the control plane at host:port api. The
// underlying HTTP client carries no timeout: the next-invocation call is a
// long poll that may block indefinitely.
func NewClient(api string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s/%s/runtime", api, apiVersion),
		httpc:   &http.Client{},
	}
}

// NewClientFromEnv builds a client from AWS_LAMBDA_RUNTIME_API.
func NewClientFromEnv() (*Client, error) {
	api := os.Getenv("AWS_LAMBDA_RUNTIME_API")
	if api == "" {
		return nil, ErrMissingRuntimeAPI
	}
	return NewClient(api), nil
}

// Next blocks until the control plane delivers an invocation, returning its
// metadata and the raw event payload. Missing headers degrade rather than
// fail: request id "unknown", deadline "0", function ARN empty.
func (c *Client) Next(ctx context.Context) (*invoke.Invocation, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/invocation/next", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build next request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch next invocation: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read next invocation: %w", err)
	}

	requestID := resp.Header.Get(headerRequestID)
	if requestID == "" {
		requestID = UnknownRequestID
	}
	deadline := resp.Header.Get(headerDeadlineMS)
	if deadline == "" {
		deadline = "0"
	}

	inv := invoke.New(requestID, deadline, resp.Header.Get(headerFunctionARN))
	return inv, payload, nil
}

// PostResponse posts the encoded response envelope for requestID.
func (c *Client) PostResponse(ctx context.Context, requestID string, payload []byte) error {
	return c.post(ctx, fmt.Sprintf("%s/invocation/%s/response", c.baseURL, requestID), payload)
}

// PostError reports a failed invocation as a structured error document.
func (c *Client) PostError(ctx context.Context, requestID string, doc ErrorDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode error document: %w", err)
	}
	return c.post(ctx, fmt.Sprintf("%s/invocation/%s/error", c.baseURL, requestID), payload)
}

func (c *Client) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post to control plane: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused for the next long poll.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
