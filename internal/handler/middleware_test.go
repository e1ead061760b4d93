package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-api/internal/invoke"
	"product-api/internal/metrics"
)

func okHandler(status int) Func {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return events.APIGatewayProxyResponse{StatusCode: status, Body: "ok"}, nil
	}
}

func TestChain(t *testing.T) {
	t.Run("applies middleware outermost first", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next Func) Func {
				return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
					order = append(order, name)
					return next(ctx, req)
				}
			}
		}

		h := Chain(okHandler(200), tag("first"), tag("second"), tag("third"))
		_, err := h(context.Background(), events.APIGatewayProxyRequest{})

		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("empty chain returns the handler unchanged", func(t *testing.T) {
		h := Chain(okHandler(204))

		resp, err := h(context.Background(), events.APIGatewayProxyRequest{})

		require.NoError(t, err)
		assert.Equal(t, 204, resp.StatusCode)
	})
}

func TestRecovery(t *testing.T) {
	t.Run("converts a panic into an error", func(t *testing.T) {
		panicking := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			panic("catalog corrupted")
		}

		h := Chain(panicking, Recovery(zerolog.Nop()))
		_, err := h(context.Background(), events.APIGatewayProxyRequest{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panic")
		assert.Contains(t, err.Error(), "catalog corrupted")
	})

	t.Run("passes a healthy invocation through", func(t *testing.T) {
		h := Chain(okHandler(201), Recovery(zerolog.Nop()))

		resp, err := h(context.Background(), events.APIGatewayProxyRequest{})

		require.NoError(t, err)
		assert.Equal(t, 201, resp.StatusCode)
	})
}

func TestLogging(t *testing.T) {
	t.Run("passes response and error through untouched", func(t *testing.T) {
		wantErr := errors.New("boom")
		failing := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, wantErr
		}

		h := Chain(failing, Logging(zerolog.Nop()))
		ctx := invoke.NewContext(context.Background(), invoke.New("req-9", "0", ""))

		_, err := h(ctx, events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/products"})

		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("works without an invocation in the context", func(t *testing.T) {
		h := Chain(okHandler(200), Logging(zerolog.Nop()))

		resp, err := h(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "GET"})

		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})
}

func TestMetrics(t *testing.T) {
	t.Run("records a successful invocation", func(t *testing.T) {
		m := metrics.New("test", prometheus.NewRegistry())

		h := Chain(okHandler(200), Metrics(m))
		_, err := h(context.Background(), events.APIGatewayProxyRequest{})

		require.NoError(t, err)
	})

	t.Run("records a failed invocation and keeps the error", func(t *testing.T) {
		m := metrics.New("test", prometheus.NewRegistry())
		failing := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return events.APIGatewayProxyResponse{}, errors.New("boom")
		}

		h := Chain(failing, Metrics(m))
		_, err := h(context.Background(), events.APIGatewayProxyRequest{})

		assert.Error(t, err)
	})
}
