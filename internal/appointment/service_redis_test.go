package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/mediqueue/internal/redis"
)

// slowRepo holds the slot lock for a few milliseconds per reservation, the
// way a Postgres round trip does.
type slowRepo struct {
	*MemoryRepository
	delay time.Duration
}

func (r *slowRepo) Reserve(ctx context.Context, res Reservation) (*Appointment, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.MemoryRepository.Reserve(ctx, res)
}

func redisFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	locker := redisclient.NewRedisSlotLocker(rdb, 5*time.Second, 3*time.Second)
	repo := &slowRepo{MemoryRepository: NewMemoryRepository(nil), delay: 5 * time.Millisecond}
	f := newFixtureWith(t, capacity, repo, locker)
	f.repo = repo.MemoryRepository
	return f
}

func bookConcurrently(t *testing.T, f *fixture, n int, start time.Time) (booked []*Appointment, errs []error) {
	t.Helper()
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = f.patient(t, "p")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range patients {
		wg.Add(1)
		go func(p uuid.UUID) {
			defer wg.Done()
			a, err := f.svc.Book(context.Background(), f.doctor.ID, testDate, start, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			booked = append(booked, a)
		}(p)
	}
	wg.Wait()
	return booked, errs
}

func TestService_RedisLockContentionIsNotSlotFull(t *testing.T) {
	f := redisFixture(t, 20)

	booked, errs := bookConcurrently(t, f, 10, at(9, 0))

	assert.Empty(t, errs)
	require.Len(t, booked, 10)
	tokens := make([]int, 0, len(booked))
	for _, a := range booked {
		tokens = append(tokens, a.TokenNumber)
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, tokens)
	assert.Equal(t, 10, f.remaining(t, at(9, 0)))
}

func TestService_RedisLockCapacityOne(t *testing.T) {
	f := redisFixture(t, 1)

	booked, errs := bookConcurrently(t, f, 10, at(9, 0))

	require.Len(t, booked, 1)
	require.Len(t, errs, 9)
	for _, err := range errs {
		assert.True(t, errors.Is(err, ErrSlotFull), "unexpected error: %v", err)
	}
	assert.Equal(t, 0, f.remaining(t, at(9, 0)))
}
