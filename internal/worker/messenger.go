package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/infrastructure/smtp"
	"github.com/go-account-api/internal/pkg/retry"
	"github.com/google/uuid"
)

type messageStore interface {
	ClaimBatch(ctx context.Context, timeout time.Duration, limit int) ([]domain.Message, error)
	Finalize(ctx context.Context, msgID string, status domain.MessageStatus) error
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type renderer interface {
	Render(kind domain.MessageKind, user *domain.User, code string) (string, error)
}

// Messenger drains the message outbox: it claims due rows, renders and mails
// them, and records the outcome per row. One instance runs per process; the
// claim query keeps extra instances from double-sending.
type Messenger struct {
	cfg      config.WorkerConfig
	from     string
	messages messageStore
	users    userStore
	render   renderer
	mailer   smtp.Mailer
	notify   *Notifier

	sendAttempts   int
	sendRetryDelay time.Duration
}

func NewMessenger(
	cfg *config.Config,
	messages messageStore,
	users userStore,
	render renderer,
	mailer smtp.Mailer,
	notify *Notifier,
) *Messenger {
	return &Messenger{
		cfg:            cfg.Worker,
		from:           cfg.SMTPFrom,
		messages:       messages,
		users:          users,
		render:         render,
		mailer:         mailer,
		notify:         notify,
		sendAttempts:   3,
		sendRetryDelay: time.Second,
	}
}

// Run loops until ctx is cancelled. After draining the outbox it sleeps until
// a Notify arrives or the poll interval elapses; the poll catches rows whose
// wake signal was lost (a crash between commit and Notify) and Sending rows
// whose claim timed out.
func (m *Messenger) Run(ctx context.Context) {
	slog.Info("delivery worker started",
		"batch_limit", m.cfg.BatchLimit,
		"poll_interval", m.cfg.PollInterval,
	)
	for {
		sent, err := m.runOnce(ctx)
		if ctx.Err() != nil {
			slog.Info("delivery worker stopped")
			return
		}
		if err != nil {
			slog.Error("claim failed, backing off", "err", err, "backoff", m.cfg.FailureBackoff)
			select {
			case <-ctx.Done():
				slog.Info("delivery worker stopped")
				return
			case <-time.After(m.cfg.FailureBackoff):
			}
			continue
		}
		if sent > 0 {
			// More rows may be due beyond the batch limit; claim again
			// immediately.
			continue
		}
		select {
		case <-ctx.Done():
			slog.Info("delivery worker stopped")
			return
		case <-m.notify.Wait():
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// runOnce claims one batch and processes every row in it. It returns the
// number of rows processed so Run can tell an empty outbox from a busy one.
func (m *Messenger) runOnce(ctx context.Context) (int, error) {
	msgs, err := m.messages.ClaimBatch(ctx, m.cfg.ClaimTimeout, m.cfg.BatchLimit)
	if err != nil {
		return 0, err
	}
	for i := range msgs {
		m.deliver(ctx, &msgs[i])
	}
	return len(msgs), nil
}

// deliver sends one claimed message and finalizes it. A missing user leaves
// the row Sending on purpose: the claim timeout retries it later, when the
// user row may have become visible.
func (m *Messenger) deliver(ctx context.Context, msg *domain.Message) {
	u, err := m.users.GetByID(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("message user not found, leaving row for reclaim",
				"message_id", msg.ID, "user_id", msg.UserID)
			return
		}
		slog.Error("load message user", "message_id", msg.ID, "err", err)
		return
	}

	status := domain.MessageStatusSuccess
	body, err := m.render.Render(msg.Kind, u, msg.Content)
	if err != nil {
		slog.Error("render message", "message_id", msg.ID, "kind", msg.Kind, "err", err)
		status = domain.MessageStatusFailed
	} else {
		err = retry.Do(ctx, m.sendAttempts, m.sendRetryDelay, func() error {
			return m.mailer.SendEmail(m.from, u.Email, msg.Kind.String(), body)
		})
		if err != nil {
			slog.Error("send message", "message_id", msg.ID, "kind", msg.Kind, "err", err)
			status = domain.MessageStatusFailed
		}
	}

	if err := m.messages.Finalize(ctx, msg.ID, status); err != nil {
		// The row stays Sending; the claim timeout picks it up again.
		slog.Error("finalize message", "message_id", msg.ID, "err", err)
		return
	}
	if status == domain.MessageStatusSuccess {
		slog.Info("message delivered", "message_id", msg.ID, "kind", msg.Kind, "user_id", u.ID)
	}
}
