// Package usertest provides an in-memory user.Repository for tests.
package usertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blagoySimandov/proaccount/internal/models"
	"github.com/blagoySimandov/proaccount/internal/user"
)

type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
	fail  map[string]error
	calls map[string]int
}

func NewMemoryRepository(seed ...*models.User) *MemoryRepository {
	r := &MemoryRepository{
		users: make(map[string]*models.User),
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
	for _, u := range seed {
		cp := *u
		r.users[u.Email] = &cp
	}
	return r
}

// FailOn makes every subsequent call to method return err.
func (r *MemoryRepository) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

// Calls returns how many times method was invoked.
func (r *MemoryRepository) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Get returns a copy of the stored user, if any.
func (r *MemoryRepository) Get(email string) (*models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (r *MemoryRepository) enter(method string) error {
	r.calls[method]++
	return r.fail[method]
}

func (r *MemoryRepository) Exists(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Exists"); err != nil {
		return false, err
	}
	_, ok := r.users[email]
	return ok, nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Create"); err != nil {
		return err
	}
	if _, ok := r.users[u.Email]; ok {
		return fmt.Errorf("%w: %s", user.ErrDuplicateEmail, u.Email)
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.users[u.Email] = &cp
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("List"); err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Count"); err != nil {
		return 0, err
	}
	return len(r.users), nil
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("UpdatePassword"); err != nil {
		return err
	}
	u, ok := r.users[email]
	if !ok {
		return fmt.Errorf("%w: %s", user.ErrNotFound, email)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) InsertPro(ctx context.Context, email string, firstName *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("InsertPro"); err != nil {
		return err
	}
	if _, ok := r.users[email]; ok {
		return fmt.Errorf("%w: %s", user.ErrDuplicateEmail, email)
	}
	now := time.Now()
	r.users[email] = &models.User{Email: email, IsPro: true, FirstName: firstName, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (r *MemoryRepository) SetPro(ctx context.Context, email string, isPro bool, firstName *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("SetPro"); err != nil {
		return err
	}
	u, ok := r.users[email]
	if !ok {
		return fmt.Errorf("%w: %s", user.ErrNotFound, email)
	}
	u.IsPro = isPro
	if firstName != nil {
		u.FirstName = firstName
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) UpsertPro(ctx context.Context, email string, isPro bool, firstName *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("UpsertPro"); err != nil {
		return err
	}
	now := time.Now()
	u, ok := r.users[email]
	if !ok {
		r.users[email] = &models.User{Email: email, IsPro: isPro, FirstName: firstName, CreatedAt: now, UpdatedAt: now}
		return nil
	}
	u.IsPro = isPro
	if firstName != nil {
		u.FirstName = firstName
	}
	u.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enter("Ping")
}

var _ user.Repository = (*MemoryRepository)(nil)
