package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blagoySimandov/proaccount/internal/logger"
	"github.com/blagoySimandov/proaccount/internal/models"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchPause = 100 * time.Millisecond
)

type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, email string) (bool, error)
}

type Store interface {
	List(ctx context.Context) ([]*models.User, error)
	SetPro(ctx context.Context, email string, isPro bool, firstName *string) error
}

type Result struct {
	Email                 string `json:"email"`
	OldStatus             bool   `json:"oldStatus"`
	NewStatus             bool   `json:"newStatus"`
	HasActiveSubscription bool   `json:"hasActiveSubscription"`
	Error                 string `json:"error,omitempty"`
}

func (r Result) changedOrFailed() bool {
	return r.OldStatus != r.NewStatus || r.Error != ""
}

type Stats struct {
	TotalUsers   int   `json:"totalUsers"`
	UpdatedUsers int   `json:"updatedUsers"`
	ErrorCount   int   `json:"errorCount"`
	DurationMs   int64 `json:"durationMs"`
}

type Summary struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Stats   *Stats   `json:"stats,omitempty"`
	Results []Result `json:"results"`
}

type Config struct {
	BatchSize  int
	BatchPause time.Duration
}

// Reconciler brings every stored pro flag in line with the payment
// provider's view of active subscriptions.
type Reconciler struct {
	store   Store
	checker SubscriptionChecker
	cfg     Config
}

func NewReconciler(store Store, checker SubscriptionChecker, cfg Config) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	return &Reconciler{
		store:   store,
		checker: checker,
		cfg:     cfg,
	}
}

// Run checks users in batches. Users inside a batch are checked concurrently
// and batches are separated by the configured pause. If ctx is cancelled
// between batches the partial summary is returned with ctx.Err().
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	users, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	if len(users) == 0 {
		return &Summary{Success: true, Message: "No users to sync", Results: []Result{}}, nil
	}

	results := make([]Result, len(users))
	var runErr error

	for i := 0; i < len(users); i += r.cfg.BatchSize {
		if i > 0 {
			if err := pause(ctx, r.cfg.BatchPause); err != nil {
				runErr = err
				results = results[:i]
				break
			}
		}

		end := min(i+r.cfg.BatchSize, len(users))

		var wg sync.WaitGroup
		for j := i; j < end; j++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = r.checkUser(ctx, users[idx])
			}(j)
		}
		wg.Wait()
	}

	stats := &Stats{TotalUsers: len(users)}
	filtered := []Result{}
	for _, res := range results {
		if res.Error != "" {
			stats.ErrorCount++
		} else if res.OldStatus != res.NewStatus {
			stats.UpdatedUsers++
		}
		if res.changedOrFailed() {
			filtered = append(filtered, res)
		}
	}
	stats.DurationMs = time.Since(start).Milliseconds()

	logger.Log.Info().
		Int("total", stats.TotalUsers).
		Int("updated", stats.UpdatedUsers).
		Int("errors", stats.ErrorCount).
		Int64("duration_ms", stats.DurationMs).
		Msg("Subscription sync completed")

	return &Summary{
		Success: runErr == nil,
		Message: "Subscription sync completed",
		Stats:   stats,
		Results: filtered,
	}, runErr
}

// checkUser never updates the store when the lookup failed.
func (r *Reconciler) checkUser(ctx context.Context, u *models.User) Result {
	res := Result{
		Email:     u.Email,
		OldStatus: u.IsPro,
		NewStatus: u.IsPro,
	}

	active, err := r.checker.HasActiveSubscription(ctx, u.Email)
	if err != nil {
		res.Error = err.Error()
		logger.Log.Warn().Err(err).Str("email", u.Email).Msg("Subscription lookup failed")
		return res
	}
	res.HasActiveSubscription = active

	if active == u.IsPro {
		return res
	}

	if err := r.store.SetPro(ctx, u.Email, active, nil); err != nil {
		res.Error = "Failed to update database"
		logger.Log.Error().Err(err).Str("email", u.Email).Bool("is_pro", active).Msg("Failed to update pro status")
		return res
	}
	res.NewStatus = active
	logger.Log.Info().Str("email", u.Email).Bool("old", u.IsPro).Bool("new", active).Msg("Pro status reconciled")
	return res
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsCancelled reports whether err came from the run's context ending.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
