// Package context carries the request and trace identifiers that tie a log
// line back to the HTTP call that produced it.
package context

import (
	"context"

	"retailops/internal/core/id"
)

// TraceContext holds the identifiers of one request.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceKey struct{}

// WithTrace stores tc in ctx.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, tc)
}

// GetTrace returns the TraceContext stored in ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceKey{}).(*TraceContext)
	return tc
}

// NewTraceContext builds a TraceContext from incoming header values.
// A missing request id is generated; a missing trace id reuses it.
func NewTraceContext(traceID, requestID string) *TraceContext {
	tc := &TraceContext{TraceID: traceID, RequestID: requestID}
	if tc.RequestID == "" {
		tc.RequestID = id.New().String()
	}
	if tc.TraceID == "" {
		tc.TraceID = tc.RequestID
	}
	return tc
}
