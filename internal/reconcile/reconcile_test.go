package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blagoySimandov/proaccount/internal/models"
	"github.com/blagoySimandov/proaccount/internal/user/usertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	mu       sync.Mutex
	active   map[string]bool
	failures map[string]error
	calls    []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (f *fakeChecker) HasActiveSubscription(ctx context.Context, email string) (bool, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, email)
	if err := f.failures[email]; err != nil {
		return false, err
	}
	return f.active[email], nil
}

func seedUsers(n int, isPro func(i int) bool) []*models.User {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, &models.User{Email: fmt.Sprintf("user%02d@example.com", i), IsPro: isPro(i)})
	}
	return users
}

func TestRun_EmptyStore(t *testing.T) {
	r := NewReconciler(usertest.NewMemoryRepository(), &fakeChecker{}, Config{})

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, "No users to sync", summary.Message)
	assert.Nil(t, summary.Stats)
	assert.NotNil(t, summary.Results)
	assert.Empty(t, summary.Results)
}

func TestRun_UpdatesOnlyChangedUsers(t *testing.T) {
	users := seedUsers(12, func(i int) bool { return i%2 == 0 })
	repo := usertest.NewMemoryRepository(users...)
	checker := &fakeChecker{active: map[string]bool{
		"user00@example.com": true,  // pro, stays pro
		"user01@example.com": true,  // free -> pro
		"user02@example.com": false, // pro -> free
	}}
	for i := 4; i < 12; i += 2 {
		checker.active[fmt.Sprintf("user%02d@example.com", i)] = true
	}
	r := NewReconciler(repo, checker, Config{BatchSize: 5, BatchPause: time.Millisecond})

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, checker.calls, 12, "every user is looked up once")
	assert.Equal(t, 12, summary.Stats.TotalUsers)
	assert.Equal(t, 2, summary.Stats.UpdatedUsers)
	assert.Equal(t, 0, summary.Stats.ErrorCount)
	assert.Equal(t, 2, repo.Calls("SetPro"))

	require.Len(t, summary.Results, 2)
	assert.Equal(t, Result{Email: "user01@example.com", OldStatus: false, NewStatus: true, HasActiveSubscription: true}, summary.Results[0])
	assert.Equal(t, Result{Email: "user02@example.com", OldStatus: true, NewStatus: false}, summary.Results[1])

	u1, _ := repo.Get("user01@example.com")
	assert.True(t, u1.IsPro)
	u2, _ := repo.Get("user02@example.com")
	assert.False(t, u2.IsPro)
}

func TestRun_LookupErrorNeverUpdates(t *testing.T) {
	repo := usertest.NewMemoryRepository(&models.User{Email: "ada@example.com", IsPro: true})
	checker := &fakeChecker{failures: map[string]error{"ada@example.com": errors.New("stripe unavailable")}}
	r := NewReconciler(repo, checker, Config{})

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stats.ErrorCount)
	assert.Equal(t, 0, summary.Stats.UpdatedUsers)
	assert.Equal(t, 0, repo.Calls("SetPro"))
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "stripe unavailable", summary.Results[0].Error)
	assert.True(t, summary.Results[0].NewStatus)

	u, _ := repo.Get("ada@example.com")
	assert.True(t, u.IsPro)
}

func TestRun_UpdateFailureCountsAsError(t *testing.T) {
	repo := usertest.NewMemoryRepository(&models.User{Email: "ada@example.com"})
	repo.FailOn("SetPro", errors.New("db down"))
	checker := &fakeChecker{active: map[string]bool{"ada@example.com": true}}
	r := NewReconciler(repo, checker, Config{})

	summary, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stats.ErrorCount)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "Failed to update database", summary.Results[0].Error)
	assert.False(t, summary.Results[0].NewStatus)
	assert.True(t, summary.Results[0].HasActiveSubscription)
}

func TestRun_ListFailure(t *testing.T) {
	repo := usertest.NewMemoryRepository()
	repo.FailOn("List", errors.New("db down"))

	_, err := NewReconciler(repo, &fakeChecker{}, Config{}).Run(context.Background())

	assert.Error(t, err)
}

func TestRun_BatchConcurrencyBounded(t *testing.T) {
	repo := usertest.NewMemoryRepository(seedUsers(11, func(int) bool { return false })...)
	checker := &fakeChecker{delay: 20 * time.Millisecond}
	r := NewReconciler(repo, checker, Config{BatchSize: 5, BatchPause: 10 * time.Millisecond})

	start := time.Now()
	_, err := r.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.LessOrEqual(t, checker.maxInFlight.Load(), int32(5))
	assert.Greater(t, checker.maxInFlight.Load(), int32(1), "users inside a batch run concurrently")
	// three batches and two pauses
	assert.GreaterOrEqual(t, elapsed, 3*20*time.Millisecond+2*10*time.Millisecond)
}

func TestRun_CancelledBetweenBatches(t *testing.T) {
	repo := usertest.NewMemoryRepository(seedUsers(10, func(int) bool { return false })...)
	checker := &fakeChecker{}
	r := NewReconciler(repo, checker, Config{BatchSize: 5, BatchPause: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	summary, err := r.Run(ctx)

	assert.True(t, IsCancelled(err))
	require.NotNil(t, summary)
	assert.False(t, summary.Success)
	assert.Len(t, checker.calls, 5, "second batch never starts")
}

func TestNewReconciler_Defaults(t *testing.T) {
	r := NewReconciler(nil, nil, Config{BatchSize: 0, BatchPause: -time.Second})
	assert.Equal(t, DefaultBatchSize, r.cfg.BatchSize)
	assert.Equal(t, time.Duration(0), r.cfg.BatchPause)
}

func TestRunAndRecord(t *testing.T) {
	repo := usertest.NewMemoryRepository(&models.User{Email: "ada@example.com"})
	r := NewReconciler(repo, &fakeChecker{active: map[string]bool{"ada@example.com": true}}, Config{})

	summary, err := RunAndRecord(context.Background(), r, "manual")

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stats.UpdatedUsers)
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	repo := usertest.NewMemoryRepository()
	r := NewReconciler(repo, &fakeChecker{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Schedule(ctx, r, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return repo.Calls("List") >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Schedule did not return after cancel")
	}
}
