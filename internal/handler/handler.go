// Package handler defines the application handler contract and the
// middleware chain the runtime wraps around it.
package handler

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

// Func handles one decoded invocation. It returns either a response to post
// back to the control plane or an error the runtime reports through the
// error endpoint.
type Func func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Middleware wraps a Func with a cross-cutting concern.
type Middleware func(next Func) Func

// Chain applies middleware so that the first entry becomes the outermost
// layer.
func Chain(h Func, middleware ...Middleware) Func {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
