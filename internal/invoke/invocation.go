// Package invoke carries per-invocation metadata from the runtime loop to
// the application handler.
package invoke

import (
	"context"
	"os"
	"strconv"
	"time"
)

// Fallbacks applied when the control plane or the environment omits a value.
const (
	fallbackRemainingMS = 30000
	fallbackMemoryMB    = 256
)

// Invocation holds the identifiers and deadline delivered by the control
// plane plus function metadata snapshotted from the process environment. A
// fresh value is built for every invocation and discarded afterwards, never
// shared across invocations.
type Invocation struct {
	RequestID          string
	DeadlineMS         int64
	InvokedFunctionARN string
	FunctionName       string
	FunctionVersion    string
	LogGroupName       string
	LogStreamName      string

	memorySize string
	now        func() time.Time
}

// New builds an Invocation from control-plane header values and a snapshot
// of the process environment. A malformed deadline degrades to zero;
// RemainingTimeMS then reports the conservative fallback.
func New(requestID, deadline, functionARN string) *Invocation {
	deadlineMS, err := strconv.ParseInt(deadline, 10, 64)
	if err != nil {
		deadlineMS = 0
	}
	return &Invocation{
		RequestID:          requestID,
		DeadlineMS:         deadlineMS,
		InvokedFunctionARN: functionARN,
		FunctionName:       os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
		FunctionVersion:    os.Getenv("AWS_LAMBDA_FUNCTION_VERSION"),
		LogGroupName:       os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME"),
		LogStreamName:      os.Getenv("AWS_LAMBDA_LOG_STREAM_NAME"),
		memorySize:         os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"),
		now:                time.Now,
	}
}

// WithClock overrides the clock used by RemainingTimeMS. Only tests call
// this, before the invocation is handed out.
func (inv *Invocation) WithClock(now func() time.Time) *Invocation {
	inv.now = now
	return inv
}

// RemainingTimeMS reports the milliseconds left before the deadline. When
// the control plane supplied no usable deadline it reports the conservative
// fallback instead of failing.
func (inv *Invocation) RemainingTimeMS() int64 {
	if inv.DeadlineMS <= 0 {
		return fallbackRemainingMS
	}
	return inv.DeadlineMS - inv.now().UnixMilli()
}

// Deadline reports the absolute deadline. The zero time means the control
// plane supplied none.
func (inv *Invocation) Deadline() time.Time {
	if inv.DeadlineMS <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(inv.DeadlineMS)
}

// MemoryLimitMB reports the configured memory limit, defaulting when the
// environment value is missing or unparsable.
func (inv *Invocation) MemoryLimitMB() int {
	mb, err := strconv.Atoi(inv.memorySize)
	if err != nil || mb <= 0 {
		return fallbackMemoryMB
	}
	return mb
}

type contextKey struct{}

// NewContext attaches inv to ctx for retrieval inside handlers.
func NewContext(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, contextKey{}, inv)
}

// FromContext extracts the Invocation attached by the runtime, if any.
func FromContext(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(contextKey{}).(*Invocation)
	return inv, ok
}
