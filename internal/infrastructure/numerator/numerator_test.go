package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailops/internal/core/apperror"
	corenumerator "retailops/internal/core/numerator"
	"retailops/internal/infrastructure/storage/postgres"
)

// --- postgres ---

type fakeRow struct {
	value int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.value
	return nil
}

type fakeQuerier struct {
	sql  string
	args []any
	row  fakeRow
}

func (q *fakeQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

func (q *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql, q.args = sql, args
	return q.row
}

type fakeSource struct{ q *fakeQuerier }

func (s fakeSource) GetQuerier(context.Context) postgres.Querier { return s.q }

func TestPostgres_Next(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{value: 42}}
	c := NewPostgres(fakeSource{q})

	v, err := c.Next(context.Background(), "t1", corenumerator.KeyInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Contains(t, q.sql, "ON CONFLICT (tenant_id, key) DO UPDATE")
	assert.Equal(t, []any{"t1", "invoice", int64(1)}, q.args)
}

func TestPostgres_Reserve(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{value: 100}}
	c := NewPostgres(fakeSource{q})

	v, err := c.Reserve(context.Background(), "t1", corenumerator.KeyGoodsReceipt, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)
	assert.Equal(t, int64(50), q.args[2])

	_, err = c.Reserve(context.Background(), "t1", corenumerator.KeyGoodsReceipt, 0)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))
}

func TestPostgres_FailureIsCounterUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	c := NewPostgres(fakeSource{&fakeQuerier{row: fakeRow{err: cause}}})

	_, err := c.Next(context.Background(), "t1", corenumerator.KeyInvoice)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeCounterUnavailable))
	assert.ErrorIs(t, err, cause)
}

// --- redis ---

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (f *fakeRedis) IncrBy(_ context.Context, key string, value int64) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.values == nil {
		f.values = make(map[string]int64)
	}
	f.values[key] += value
	return redis.NewIntResult(f.values[key], nil)
}

func TestRedis_KeysArePerTenant(t *testing.T) {
	client := &fakeRedis{}
	c := NewRedis(client)
	ctx := context.Background()

	a1, err := c.Next(ctx, "a", corenumerator.KeyInvoice)
	require.NoError(t, err)
	a2, err := c.Next(ctx, "a", corenumerator.KeyInvoice)
	require.NoError(t, err)
	b1, err := c.Next(ctx, "b", corenumerator.KeyInvoice)
	require.NoError(t, err)

	assert.Equal(t, int64(1), a1)
	assert.Equal(t, int64(2), a2)
	assert.Equal(t, int64(1), b1)
	assert.Equal(t, int64(2), client.values["seq:a:invoice"])
}

func TestRedis_FailureIsCounterUnavailable(t *testing.T) {
	c := NewRedis(&fakeRedis{err: redis.ErrClosed})

	_, err := c.Next(context.Background(), "a", corenumerator.KeyInvoice)
	assert.True(t, apperror.IsCode(err, apperror.CodeCounterUnavailable))
}

// --- cached ---

type countingReserver struct {
	calls int
	last  int64
	err   error
}

func (r *countingReserver) Reserve(_ context.Context, _, _ string, n int64) (int64, error) {
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	r.last += n
	return r.last, nil
}

func TestCached_ReservesBlocks(t *testing.T) {
	backend := &countingReserver{}
	c := NewCached(backend, 3)
	ctx := context.Background()

	var got []int64
	for range 7 {
		v, err := c.Next(ctx, "t1", corenumerator.KeyGoodsReceipt)
		require.NoError(t, err)
		got = append(got, v)
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, got)
	assert.Equal(t, 3, backend.calls)
}

func TestCached_BackendError(t *testing.T) {
	c := NewCached(&countingReserver{err: apperror.NewCounterUnavailable("grn", errors.New("down"))}, 10)

	_, err := c.Next(context.Background(), "t1", corenumerator.KeyGoodsReceipt)
	assert.True(t, apperror.IsCode(err, apperror.CodeCounterUnavailable))
}

func TestCached_ConcurrentUnique(t *testing.T) {
	c := NewCached(NewRedis(&fakeRedis{}), 4)
	ctx := context.Background()

	const n = 50
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Next(ctx, "t1", corenumerator.KeyGoodsReceipt)
			assert.NoError(t, err)
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		assert.False(t, seen[v], "duplicate value %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

// --- breaker ---

func TestBreaker_OpensAfterFailures(t *testing.T) {
	var calls int
	inner := corenumerator.CounterFunc(func(context.Context, string, string) (int64, error) {
		calls++
		return 0, apperror.NewCounterUnavailable("invoice", errors.New("down"))
	})
	b := NewBreaker(inner, BreakerConfig{Name: "test", ConsecutiveFailures: 2, OpenFor: time.Minute})
	ctx := context.Background()

	for range 2 {
		_, err := b.Next(ctx, "t1", corenumerator.KeyInvoice)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Next(ctx, "t1", corenumerator.KeyInvoice)
	assert.True(t, apperror.IsCode(err, apperror.CodeCounterUnavailable))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestBreaker_PassesValues(t *testing.T) {
	b := NewBreaker(&corenumerator.MockCounter{}, DefaultBreakerConfig("test"))

	v, err := b.Next(context.Background(), "t1", corenumerator.KeyInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestBreaker_Reserve(t *testing.T) {
	b := NewBreaker(NewRedis(&fakeRedis{}), DefaultBreakerConfig("test"))

	v, err := b.Reserve(context.Background(), "t1", corenumerator.KeyGoodsReceipt, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	plain := NewBreaker(&corenumerator.MockCounter{}, DefaultBreakerConfig("test"))
	_, err = plain.Reserve(context.Background(), "t1", corenumerator.KeyGoodsReceipt, 10)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))
}
