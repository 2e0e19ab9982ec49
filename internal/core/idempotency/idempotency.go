// Package idempotency defines the store behind the X-Idempotency-Key header.
// A key belongs to one tenant and one request: the first request carrying it
// runs, later ones with the same operation and body receive the stored
// response.
package idempotency

import (
	"context"
	"time"

	"retailops/internal/core/apperror"
)

// Status is the state of a key.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// DefaultStaleAfter is how long a pending key may go without completing
// before another request may take it over.
const DefaultStaleAfter = time.Minute

// Request identifies a keyed request.
type Request struct {
	TenantID    string
	Key         string
	Operation   string // method and path
	RequestHash string // SHA-256 of the body, hex encoded
}

// Response is the stored outcome replayed for repeated requests.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Record is a stored key.
type Record struct {
	Request
	Status    Status
	Response  Response
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Store persists keys.
type Store interface {
	// Acquire claims the key for req. It returns (nil, nil) when the caller
	// owns the key and must run the request, or the stored response when the
	// request already completed.
	Acquire(ctx context.Context, req Request) (*Response, error)

	// Complete stores the response for replay.
	Complete(ctx context.Context, req Request, resp Response) error

	// Release forgets the key so the request can be retried.
	Release(ctx context.Context, req Request) error
}

// Resolve decides what req gets when r already holds its key. reclaim is
// true when the caller may take the record over and run the request.
func (r *Record) Resolve(req Request, now time.Time, staleAfter time.Duration) (replay *Response, reclaim bool, err error) {
	if now.After(r.ExpiresAt) {
		return nil, true, nil
	}
	if r.Operation != req.Operation || r.RequestHash != req.RequestHash {
		return nil, false, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", r.Operation).
			WithDetail("request_operation", req.Operation)
	}
	switch r.Status {
	case StatusCompleted:
		resp := r.Response
		if resp.StatusCode == 0 {
			resp.StatusCode = 200
		}
		if resp.ContentType == "" {
			resp.ContentType = "application/json"
		}
		return &resp, false, nil
	default:
		if now.Sub(r.UpdatedAt) > staleAfter {
			return nil, true, nil
		}
		return nil, false, apperror.NewIdempotencyConflict(req.Key)
	}
}
