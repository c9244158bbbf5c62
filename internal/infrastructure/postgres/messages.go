package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/id"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MessageRepo is the transactional outbox. Rows are inserted inside the
// business transaction that triggers them and mutated only by the delivery
// worker afterwards.
type MessageRepo struct {
	db *bun.DB
}

func NewMessageRepo(db *bun.DB) *MessageRepo { return &MessageRepo{db: db} }

// Save inserts a Pending message inside the caller's transaction so the
// notification commits (or rolls back) atomically with the business change.
func (r *MessageRepo) Save(ctx context.Context, idb bun.IDB, userID uuid.UUID, content string, kind domain.MessageKind) (string, error) {
	now := time.Now().UTC()
	msg := &domain.Message{
		ID:        id.New(),
		Kind:      kind,
		Status:    domain.MessageStatusPending,
		Content:   content,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := idb.NewInsert().Model(msg).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	return msg.ID, nil
}

// FindByUserAndKind returns the newest message of the given kind for the user.
// Activation compares the submitted code against this row's content.
func (r *MessageRepo) FindByUserAndKind(ctx context.Context, userID uuid.UUID, kind domain.MessageKind) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.NewSelect().
		Model(&msg).
		Where("msg.user_id = ? AND msg.kind = ?", userID, kind).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message for user %s kind %s: %w", userID, kind, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select message by user and kind: %w", err)
	}
	return &msg, nil
}

// ClaimBatch selects due messages and marks them Sending in one transaction.
// Due means Pending, Failed, or Sending whose updated_at is older than
// timeout (a worker died mid-send; the row is reclaimed). FOR UPDATE SKIP
// LOCKED makes concurrent claimants pick disjoint row sets instead of racing
// on the same rows.
func (r *MessageRepo) ClaimBatch(ctx context.Context, timeout time.Duration, limit int) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		cutoff := time.Now().UTC().Add(-timeout)
		err := tx.NewSelect().
			Model(&msgs).
			Where("msg.status IN (?, ?)", domain.MessageStatusPending, domain.MessageStatusFailed).
			WhereOr("msg.status = ? AND msg.updated_at <= ?", domain.MessageStatusSending, cutoff).
			Order("created_at ASC").
			Limit(limit).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("select due messages: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i := range msgs {
			msgs[i].Status = domain.MessageStatusSending
			msgs[i].UpdatedAt = now
		}
		if _, err := tx.NewUpdate().Model(&msgs).Column("status", "updated_at").Bulk().Exec(ctx); err != nil {
			return fmt.Errorf("mark messages sending: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	return msgs, nil
}

// Finalize records the outcome of a send attempt. It runs outside the claim
// transaction because the outcome is unknown at claim time. A failed Finalize
// leaves the row Sending; the timeout reclaim picks it up again.
func (r *MessageRepo) Finalize(ctx context.Context, msgID string, status domain.MessageStatus) error {
	_, err := r.db.NewUpdate().
		Model((*domain.Message)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", msgID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize message %s: %w", msgID, err)
	}
	return nil
}
