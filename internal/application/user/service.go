package user

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/code"
	"github.com/go-account-api/internal/pkg/validate"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (uuid.UUID, error)
	Activate(ctx context.Context, userID uuid.UUID, submittedCode string) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req domain.UpdateProfileRequest) error
	List(ctx context.Context, page, perPage int) ([]domain.User, int, error)
}

type txRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

type userStore interface {
	Create(ctx context.Context, idb bun.IDB, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ExistsByUsername(ctx context.Context, idb bun.IDB, username string) (bool, error)
	ExistsByEmail(ctx context.Context, idb bun.IDB, email string) (bool, error)
	Activate(ctx context.Context, id uuid.UUID) error
	Update(ctx context.Context, u *domain.User) error
	List(ctx context.Context, limit, offset int) ([]domain.User, int, error)
}

type messageStore interface {
	Save(ctx context.Context, idb bun.IDB, userID uuid.UUID, content string, kind domain.MessageKind) (string, error)
	FindByUserAndKind(ctx context.Context, userID uuid.UUID, kind domain.MessageKind) (*domain.Message, error)
}

// notifier wakes the delivery worker after an outbox row is committed.
type notifier interface {
	Notify()
}

type service struct {
	db       txRunner
	users    userStore
	messages messageStore
	notify   notifier
}

func NewService(db txRunner, users userStore, messages messageStore, notify notifier) Service {
	return &service{db: db, users: users, messages: messages, notify: notify}
}

// Register creates an inactive user and its ActiveCode outbox row in one
// transaction, then wakes the worker. The activation email is never orphaned
// or sent for a user row that failed to commit.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (uuid.UUID, error) {
	if err := validate.Struct(req); err != nil {
		return uuid.Nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}
	activeCode, err := code.Generate()
	if err != nil {
		return uuid.Nil, err
	}

	userID := uuid.New()
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if taken, err := s.users.ExistsByUsername(ctx, tx, req.Username); err != nil {
			return err
		} else if taken {
			return fmt.Errorf("username %q already exists: %w", req.Username, domain.ErrConflict)
		}
		if taken, err := s.users.ExistsByEmail(ctx, tx, req.Email); err != nil {
			return err
		} else if taken {
			return fmt.Errorf("email %q already exists: %w", req.Email, domain.ErrConflict)
		}
		u := &domain.User{
			ID:           userID,
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         domain.RoleUser,
			Active:       false,
			TwoFactor:    false,
		}
		if err := s.users.Create(ctx, tx, u); err != nil {
			return err
		}
		if _, err := s.messages.Save(ctx, tx, userID, activeCode, domain.MessageKindActiveCode); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.notify.Notify()
	slog.Info("registered new user", "user_id", userID, "username", req.Username)
	return userID, nil
}

// Activate compares the submitted code against the newest ActiveCode outbox
// row. Activating an already-active user succeeds without touching anything.
func (s *service) Activate(ctx context.Context, userID uuid.UUID, submittedCode string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u.Active {
		return nil
	}
	msg, err := s.messages.FindByUserAndKind(ctx, userID, domain.MessageKindActiveCode)
	if err != nil {
		return err
	}
	if msg.Content != submittedCode {
		return domain.NewInvalidInput("code", "code is invalid")
	}
	if err := s.users.Activate(ctx, userID); err != nil {
		return err
	}
	slog.Info("activated user", "user_id", userID)
	return nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("user is not active: %w", domain.ErrForbidden)
	}
	return u, nil
}

// UpdateProfile applies username, password, and 2FA changes. Toggling 2FA on
// is what routes the next login through the emailed-code flow.
func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req domain.UpdateProfileRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	if req.TwoFactor != nil {
		u.TwoFactor = *req.TwoFactor
	}
	u.UpdatedAt = time.Now().UTC()
	return s.users.Update(ctx, u)
}

func (s *service) List(ctx context.Context, page, perPage int) ([]domain.User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	return s.users.List(ctx, perPage, (page-1)*perPage)
}
