package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"product-api/internal/invoke"
	"product-api/internal/metrics"
)

// Recovery converts a handler panic into an ordinary error so a panicking
// invocation is reported to the control plane instead of killing the
// process. It belongs at the outermost position of the chain.
func Recovery(log zerolog.Logger) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Msg("handler panicked")
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// Logging logs dispatch and completion of every invocation, tagged with the
// request id when the invocation context carries one.
func Logging(log zerolog.Logger) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			lg := log.With().
				Str("method", req.HTTPMethod).
				Str("path", req.Path).
				Logger()
			if inv, ok := invoke.FromContext(ctx); ok {
				lg = lg.With().Str("request_id", inv.RequestID).Logger()
			}

			lg.Debug().Msg("processing invocation")
			start := time.Now()

			resp, err := next(ctx, req)
			if err != nil {
				lg.Error().Err(err).Dur("duration", time.Since(start)).Msg("invocation failed")
				return resp, err
			}

			lg.Info().
				Int("status", resp.StatusCode).
				Dur("duration", time.Since(start)).
				Msg("invocation complete")
			return resp, nil
		}
	}
}

// Metrics records outcome, latency and in-flight count per invocation.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			m.StartOperation("invocation")
			defer m.EndOperation("invocation")

			start := time.Now()
			resp, err := next(ctx, req)
			m.RecordDuration("invocation", time.Since(start).Seconds())

			if err != nil {
				m.RecordError("invocation", "handler_error")
				return resp, err
			}
			m.RecordSuccess("invocation")
			return resp, nil
		}
	}
}
