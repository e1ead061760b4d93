package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-api/internal/handler"
	"product-api/internal/invoke"
)

// scriptedEvent is one invocation the fake control plane will deliver.
type scriptedEvent struct {
	payload   string
	requestID string // empty means the header is omitted
	deadline  string // empty means the header is omitted
	arn       string
	dropConn  bool // close the connection instead of serving the event
}

// controlPlane fakes the invocation API, recording every call in order.
type controlPlane struct {
	mu     sync.Mutex
	events []scriptedEvent
	next   int

	calls     []string
	responses map[string]string
	errorDocs map[string]ErrorDocument

	dropResponsePosts bool
	dropErrorPosts    bool
}

func newControlPlane(events ...scriptedEvent) *controlPlane {
	return &controlPlane{
		events:    events,
		responses: make(map[string]string),
		errorDocs: make(map[string]ErrorDocument),
	}
}

func (cp *controlPlane) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if r.URL.Path == "/2018-06-01/runtime/invocation/next" {
		cp.calls = append(cp.calls, "next")
		if cp.next >= len(cp.events) {
			http.Error(w, "no more events", http.StatusGone)
			return
		}
		ev := cp.events[cp.next]
		cp.next++

		if ev.dropConn {
			dropConnection(w)
			return
		}
		if ev.requestID != "" {
			w.Header().Set("Lambda-Runtime-Aws-Request-Id", ev.requestID)
		}
		if ev.deadline != "" {
			w.Header().Set("Lambda-Runtime-Deadline-Ms", ev.deadline)
		}
		if ev.arn != "" {
			w.Header().Set("Lambda-Runtime-Invoked-Function-Arn", ev.arn)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ev.payload))
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	// 2018-06-01 / runtime / invocation / {id} / response|error
	if len(parts) != 5 || parts[2] != "invocation" {
		http.NotFound(w, r)
		return
	}
	id, kind := parts[3], parts[4]

	body, _ := io.ReadAll(r.Body)

	switch kind {
	case "response":
		cp.calls = append(cp.calls, "response:"+id)
		if cp.dropResponsePosts {
			dropConnection(w)
			return
		}
		cp.responses[id] = string(body)
	case "error":
		cp.calls = append(cp.calls, "error:"+id)
		if cp.dropErrorPosts {
			dropConnection(w)
			return
		}
		var doc ErrorDocument
		_ = json.Unmarshal(body, &doc)
		cp.errorDocs[id] = doc
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func dropConnection(w http.ResponseWriter) {
	conn, _, err := w.(http.Hijacker).Hijack()
	if err == nil {
		_ = conn.Close()
	}
}

func (cp *controlPlane) snapshot() ([]string, map[string]string, map[string]ErrorDocument) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return append([]string(nil), cp.calls...), cp.responses, cp.errorDocs
}

func startRuntime(t *testing.T, cp *controlPlane, h handler.Func, iterations int) {
	t.Helper()
	srv := httptest.NewServer(cp)
	t.Cleanup(srv.Close)

	client := NewClient(strings.TrimPrefix(srv.URL, "http://"))
	rt := New(client, h, Config{
		Logger:        zerolog.Nop(),
		MaxIterations: iterations,
	})
	require.NoError(t, rt.Run(context.Background()))
}

func echoHandler(body string) handler.Func {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return events.APIGatewayProxyResponse{StatusCode: 200, Body: body}, nil
	}
}

func TestRuntime_Run(t *testing.T) {
	t.Run("posts one response per event, strictly interleaved", func(t *testing.T) {
		cp := newControlPlane(
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-1"},
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-2"},
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-3"},
		)

		startRuntime(t, cp, echoHandler("done"), 3)

		calls, responses, _ := cp.snapshot()
		assert.Equal(t, []string{
			"next", "response:req-1",
			"next", "response:req-2",
			"next", "response:req-3",
		}, calls)
		assert.JSONEq(t, `{"statusCode":200,"body":"done"}`, responses["req-1"])
		assert.JSONEq(t, `{"statusCode":200,"body":"done"}`, responses["req-3"])
	})

	t.Run("hands decoded request and invocation metadata to the handler", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{
			payload:   `{"httpMethod":"POST","path":"/products","body":"{}"}`,
			requestID: "req-7",
			deadline:  "1755900000000",
			arn:       "arn:aws:lambda:local:000000000000:function:product-api",
		})

		var gotReq events.APIGatewayProxyRequest
		var gotInv *invoke.Invocation
		h := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			gotReq = req
			gotInv, _ = invoke.FromContext(ctx)
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		}

		startRuntime(t, cp, h, 1)

		require.NotNil(t, gotInv)
		assert.Equal(t, "POST", gotReq.HTTPMethod)
		assert.Equal(t, "/products", gotReq.Path)
		assert.Equal(t, "req-7", gotInv.RequestID)
		assert.Equal(t, int64(1755900000000), gotInv.DeadlineMS)
		assert.Equal(t, "arn:aws:lambda:local:000000000000:function:product-api", gotInv.InvokedFunctionARN)
	})

	t.Run("missing headers fall back to unknown id and zero deadline", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{payload: `{"httpMethod":"GET"}`})

		var gotInv *invoke.Invocation
		h := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			gotInv, _ = invoke.FromContext(ctx)
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		}

		startRuntime(t, cp, h, 1)

		calls, responses, _ := cp.snapshot()
		require.NotNil(t, gotInv)
		assert.Equal(t, "unknown", gotInv.RequestID)
		assert.Equal(t, int64(0), gotInv.DeadlineMS)
		assert.Equal(t, int64(30000), gotInv.RemainingTimeMS())
		assert.Equal(t, []string{"next", "response:unknown"}, calls)
		assert.Contains(t, responses, "unknown")
	})

	t.Run("reports a handler failure and keeps processing", func(t *testing.T) {
		cp := newControlPlane(
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "abc123"},
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "def456"},
		)

		first := true
		h := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			if first {
				first = false
				return events.APIGatewayProxyResponse{}, errors.New("boom")
			}
			return events.APIGatewayProxyResponse{StatusCode: 200, Body: "ok"}, nil
		}

		startRuntime(t, cp, h, 2)

		calls, responses, errorDocs := cp.snapshot()
		assert.Equal(t, []string{"next", "error:abc123", "next", "response:def456"}, calls)
		assert.Equal(t, ErrorDocument{ErrorMessage: "boom", ErrorType: "errorString"}, errorDocs["abc123"])
		assert.Contains(t, responses, "def456")
	})

	t.Run("reports a malformed payload as a decode failure", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{payload: `{"httpMethod":`, requestID: "bad-1"})

		startRuntime(t, cp, echoHandler("never"), 1)

		_, _, errorDocs := cp.snapshot()
		require.Contains(t, errorDocs, "bad-1")
		assert.Equal(t, "SyntaxError", errorDocs["bad-1"].ErrorType)
		assert.NotEmpty(t, errorDocs["bad-1"].ErrorMessage)
	})

	t.Run("reports an envelope without a method as a decode failure", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{payload: `{"path":"/products"}`, requestID: "bad-2"})

		startRuntime(t, cp, echoHandler("never"), 1)

		_, _, errorDocs := cp.snapshot()
		require.Contains(t, errorDocs, "bad-2")
		assert.Equal(t, "DecodeError", errorDocs["bad-2"].ErrorType)
	})

	t.Run("empty error message degrades to a placeholder", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-e"})

		h := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, errors.New("")
		}

		startRuntime(t, cp, h, 1)

		_, _, errorDocs := cp.snapshot()
		assert.Equal(t, "Unknown error", errorDocs["req-e"].ErrorMessage)
	})

	t.Run("a dropped fetch abandons the iteration and the loop continues", func(t *testing.T) {
		cp := newControlPlane(
			scriptedEvent{dropConn: true},
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-ok"},
		)

		startRuntime(t, cp, echoHandler("ok"), 2)

		calls, responses, _ := cp.snapshot()
		assert.Equal(t, []string{"next", "next", "response:req-ok"}, calls)
		assert.Contains(t, responses, "req-ok")
	})

	t.Run("a failed response post triggers an error report", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-p"})
		cp.dropResponsePosts = true

		startRuntime(t, cp, echoHandler("ok"), 1)

		calls, _, errorDocs := cp.snapshot()
		assert.Equal(t, []string{"next", "response:req-p", "error:req-p"}, calls)
		assert.Contains(t, errorDocs, "req-p")
		assert.NotEmpty(t, errorDocs["req-p"].ErrorMessage)
	})

	t.Run("a failed error report is swallowed", func(t *testing.T) {
		cp := newControlPlane(
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-a"},
			scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "req-b"},
		)
		cp.dropErrorPosts = true

		first := true
		h := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			if first {
				first = false
				return events.APIGatewayProxyResponse{}, errors.New("boom")
			}
			return events.APIGatewayProxyResponse{StatusCode: 200}, nil
		}

		startRuntime(t, cp, h, 2)

		calls, responses, _ := cp.snapshot()
		assert.Equal(t, []string{"next", "error:req-a", "next", "response:req-b"}, calls)
		assert.Contains(t, responses, "req-b")
	})

	t.Run("returns once the iteration bound is reached", func(t *testing.T) {
		cp := newControlPlane(scriptedEvent{payload: `{"httpMethod":"GET"}`, requestID: "only"})

		startRuntime(t, cp, echoHandler("ok"), 1)

		calls, _, _ := cp.snapshot()
		assert.Equal(t, []string{"next", "response:only"}, calls)
	})

	t.Run("stops when the context is canceled", func(t *testing.T) {
		cp := newControlPlane()
		srv := httptest.NewServer(cp)
		t.Cleanup(srv.Close)

		client := NewClient(strings.TrimPrefix(srv.URL, "http://"))
		rt := New(client, echoHandler("never"), Config{Logger: zerolog.Nop()})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := rt.Run(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		calls, _, _ := cp.snapshot()
		assert.Empty(t, calls)
	})
}

func TestNewClientFromEnv(t *testing.T) {
	t.Run("fails without the control plane address", func(t *testing.T) {
		t.Setenv("AWS_LAMBDA_RUNTIME_API", "")

		_, err := NewClientFromEnv()

		assert.ErrorIs(t, err, ErrMissingRuntimeAPI)
	})

	t.Run("builds a client from the environment", func(t *testing.T) {
		t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")

		client, err := NewClientFromEnv()

		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:9001/2018-06-01/runtime", client.baseURL)
	})
}
