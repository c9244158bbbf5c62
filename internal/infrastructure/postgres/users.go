package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// UserRepo provides access to the users table. Methods taking a bun.IDB can
// run inside a caller-owned transaction; the rest use the repo's own handle.
type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user inside the caller's transaction.
func (r *UserRepo) Create(ctx context.Context, idb bun.IDB, u *domain.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := idb.NewInsert().Model(u).Exec(ctx); err != nil {
		// A concurrent registration can slip past the exists checks; the
		// unique constraint is the authority.
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return fmt.Errorf("user already exists: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().Model(&u).Where("usr.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select user by id: %w", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().Model(&u).Where("usr.email = ?", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user by email: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return &u, nil
}

// ExistsByUsername reports whether any user holds the given username.
func (r *UserRepo) ExistsByUsername(ctx context.Context, idb bun.IDB, username string) (bool, error) {
	exists, err := idb.NewSelect().Model((*domain.User)(nil)).Where("usr.username = ?", username).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("exists by username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether any user holds the given email.
func (r *UserRepo) ExistsByEmail(ctx context.Context, idb bun.IDB, email string) (bool, error) {
	exists, err := idb.NewSelect().Model((*domain.User)(nil)).Where("usr.email = ?", email).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}
	return exists, nil
}

// Activate flips the user to active. Activating an already-active user is a
// no-op at the SQL level, which keeps the activation endpoint idempotent.
func (r *UserRepo) Activate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*domain.User)(nil)).
		Set("is_active = TRUE").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.db.NewUpdate().
		Model((*domain.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Update persists username/password/2FA profile changes.
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := r.db.NewUpdate().
		Model(u).
		Column("username", "password_hash", "is_2fa", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// List returns one page of users plus the total count.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	var users []domain.User
	total, err := r.db.NewSelect().
		Model(&users).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}
