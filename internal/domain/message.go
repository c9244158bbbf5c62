package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MessageKind selects the notification template and the email subject.
type MessageKind string

const (
	MessageKindActiveCode         MessageKind = "ActiveCode"
	MessageKindLoginCode          MessageKind = "LoginCode"
	MessageKindForgotPasswordCode MessageKind = "ForgotPasswordCode"
)

func (k MessageKind) IsValid() bool {
	switch k {
	case MessageKindActiveCode, MessageKindLoginCode, MessageKindForgotPasswordCode:
		return true
	}
	return false
}

func (k MessageKind) String() string { return string(k) }

// MessageStatus tracks outbox delivery progress. Transitions are monotone
// except Sending -> Sending via the timeout reclaim path.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "Pending"
	MessageStatusSending MessageStatus = "Sending"
	MessageStatusSuccess MessageStatus = "Success"
	MessageStatusFailed  MessageStatus = "Failed"
)

func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSending, MessageStatusSuccess, MessageStatusFailed:
		return true
	}
	return false
}

func (s MessageStatus) String() string { return string(s) }

// Message is one outbox row: a notification created inside the transaction of
// the business action that triggered it, delivered later by the worker.
// Rows are never deleted; terminal rows stay behind as an audit trail.
type Message struct {
	bun.BaseModel `bun:"table:message,alias:msg"`

	ID        string        `json:"id" bun:"id,pk"`
	Kind      MessageKind   `json:"kind" bun:"kind,notnull"`
	Status    MessageStatus `json:"status" bun:"status,notnull"`
	Content   string        `json:"content" bun:"content,type:text,notnull"`
	UserID    uuid.UUID     `json:"user_id" bun:"user_id,notnull,type:uuid"`
	CreatedAt time.Time     `json:"created_at" bun:"created_at,notnull"`
	UpdatedAt time.Time     `json:"updated_at" bun:"updated_at,notnull"`
}
