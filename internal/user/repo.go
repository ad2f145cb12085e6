package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blagoySimandov/proaccount/internal/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const pgUniqueViolation = "23505"

var (
	ErrDuplicateEmail = errors.New("user with this email already exists")
	ErrNotFound       = errors.New("user not found")
)

type Repository interface {
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	InsertPro(ctx context.Context, email string, firstName *string) error
	SetPro(ctx context.Context, email string, isPro bool, firstName *string) error
	UpsertPro(ctx context.Context, email string, isPro bool, firstName *string) error
	Ping(ctx context.Context) error
}

type UserRepository struct {
	db bun.IDB
}

func NewUserRepository(db bun.IDB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.UserDB)(nil)).
		Where("email = ?", email).
		Exists(ctx)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(models.UserFromDomain(user)).
		Returning("NULL").
		Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, user.Email)
	}
	return err
}

func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	var rows []models.UserDB
	err := r.db.NewSelect().
		Model(&rows).
		Order("createdAt ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].ToUser())
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	return r.db.NewSelect().Model((*models.UserDB)(nil)).Count(ctx)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("password = ?", passwordHash).
		Set("? = ?", bun.Ident("updatedAt"), time.Now()).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, email)
}

// InsertPro creates a paid account without a password. A row that already
// exists is reported as ErrDuplicateEmail so the caller can fall back to SetPro.
func (r *UserRepository) InsertPro(ctx context.Context, email string, firstName *string) error {
	now := time.Now()
	row := &models.UserDB{
		Email:     email,
		IsPro:     true,
		FirstName: firstName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.NewInsert().
		Model(row).
		Returning("NULL").
		Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}
	return err
}

func (r *UserRepository) SetPro(ctx context.Context, email string, isPro bool, firstName *string) error {
	q := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("? = ?", bun.Ident("isPro"), isPro).
		Set("? = ?", bun.Ident("updatedAt"), time.Now()).
		Where("email = ?", email)
	if firstName != nil {
		q = q.Set("? = ?", bun.Ident("firstName"), *firstName)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, email)
}

func (r *UserRepository) UpsertPro(ctx context.Context, email string, isPro bool, firstName *string) error {
	now := time.Now()
	row := &models.UserDB{
		Email:     email,
		IsPro:     isPro,
		FirstName: firstName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (email) DO UPDATE").
		Set(`"isPro" = EXCLUDED."isPro"`).
		Set(`"firstName" = COALESCE(EXCLUDED."firstName", "u"."firstName")`).
		Set(`"updatedAt" = EXCLUDED."updatedAt"`).
		Returning("NULL").
		Exec(ctx)
	return err
}

func (r *UserRepository) Ping(ctx context.Context) error {
	_, err := r.db.NewSelect().ColumnExpr("1").Exec(ctx)
	return err
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, email string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation
}
