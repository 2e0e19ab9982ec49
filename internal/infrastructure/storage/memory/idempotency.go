package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"retailops/internal/core/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

type idemKey struct {
	tenantID string
	key      string
}

// IdempotencyStore keeps keys outside the transactional state so a rolled
// back request does not forget its key.
type IdempotencyStore struct {
	mu         sync.Mutex
	records    map[idemKey]idempotency.Record
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		records:    make(map[idemKey]idempotency.Record),
		ttl:        ttl,
		staleAfter: idempotency.DefaultStaleAfter,
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (s *IdempotencyStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *IdempotencyStore) Acquire(_ context.Context, req idempotency.Request) (*idempotency.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	k := idemKey{tenantID: req.TenantID, key: req.Key}
	if rec, ok := s.records[k]; ok {
		replay, reclaim, err := rec.Resolve(req, now, s.staleAfter)
		if err != nil || replay != nil {
			return replay, err
		}
		if !reclaim {
			return nil, nil
		}
	}
	s.records[k] = idempotency.Record{
		Request:   req,
		Status:    idempotency.StatusPending,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	return nil, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, req idempotency.Request, resp idempotency.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := idemKey{tenantID: req.TenantID, key: req.Key}
	rec, ok := s.records[k]
	if !ok {
		return nil
	}
	resp.Body = slices.Clone(resp.Body)
	rec.Status = idempotency.StatusCompleted
	rec.Response = resp
	rec.UpdatedAt = s.now().UTC()
	s.records[k] = rec
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, req idempotency.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, idemKey{tenantID: req.TenantID, key: req.Key})
	return nil
}

// CleanupExpired drops keys past their expiry and returns how many went.
func (s *IdempotencyStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var n int64
	for k, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}
