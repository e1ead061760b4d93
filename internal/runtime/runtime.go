// Package runtime implements the invocation loop against the control-plane
// API: fetch the next event, decode it, dispatch the application handler,
// and post the result or a structured error back. The loop is strictly
// sequential and survives every per-invocation failure.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"product-api/internal/envelope"
	"product-api/internal/handler"
	"product-api/internal/invoke"
	"product-api/internal/metrics"
)

// Config tunes the runtime loop.
type Config struct {
	// Logger receives loop-level diagnostics.
	Logger zerolog.Logger
	// Metrics records fetch and post failures. Nil disables recording.
	Metrics *metrics.Metrics
	// MaxIterations bounds the number of loop iterations. Zero means
	// unbounded; only tests set this.
	MaxIterations int
}

// Runtime owns the sequential invocation loop.
type Runtime struct {
	client  *Client
	handler handler.Func
	log     zerolog.Logger
	metrics *metrics.Metrics
	maxIter int
}

// New assembles a runtime around a control-plane client and an application
// handler.
func New(client *Client, h handler.Func, cfg Config) *Runtime {
	return &Runtime{
		client:  client,
		handler: h,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		maxIter: cfg.MaxIterations,
	}
}

// Run drives the loop. Under normal operation it never returns: each
// iteration blocks on the next invocation, resolves it, and loops. It exits
// early only when ctx is canceled or the configured iteration bound is
// reached.
func (r *Runtime) Run(ctx context.Context) error {
	for i := 0; r.maxIter == 0 || i < r.maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processNext(ctx)
	}
	return nil
}

// processNext resolves exactly one invocation. A fetch failure abandons the
// iteration; every failure after the fetch is reported to the control plane
// against the fetched request id, and a failed report is logged and
// swallowed so the loop always survives.
func (r *Runtime) processNext(ctx context.Context) {
	inv, payload, err := r.client.Next(ctx)
	if err != nil {
		r.recordError("fetch_next", "transport_error")
		r.log.Error().Err(err).Msg("fetch next invocation failed")
		return
	}

	lg := r.log.With().Str("request_id", inv.RequestID).Logger()

	resp, err := r.dispatch(ctx, inv, payload)
	if err != nil {
		r.report(ctx, lg, inv.RequestID, err)
		return
	}

	body, err := json.Marshal(envelope.EncodeResponse(resp))
	if err != nil {
		r.report(ctx, lg, inv.RequestID, fmt.Errorf("encode response: %w", err))
		return
	}

	if err := r.client.PostResponse(ctx, inv.RequestID, body); err != nil {
		r.recordError("post_response", "transport_error")
		r.report(ctx, lg, inv.RequestID, err)
		return
	}
}

// dispatch turns a raw payload into a handler invocation.
func (r *Runtime) dispatch(ctx context.Context, inv *invoke.Invocation, payload []byte) (events.APIGatewayProxyResponse, error) {
	env, err := envelope.ParseEnvelope(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	req, err := envelope.DecodeRequest(env)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return r.handler(invoke.NewContext(ctx, inv), req)
}

// report posts an error document for the invocation. A secondary failure
// while reporting is logged and swallowed.
func (r *Runtime) report(ctx context.Context, lg zerolog.Logger, requestID string, cause error) {
	lg.Error().Err(cause).Msg("invocation failed")

	if err := r.client.PostError(ctx, requestID, newErrorDocument(cause)); err != nil {
		r.recordError("post_error", "transport_error")
		lg.Error().Err(err).Msg("error report failed")
	}
}

func (r *Runtime) recordError(operation, errorType string) {
	if r.metrics != nil {
		r.metrics.RecordError(operation, errorType)
	}
}
