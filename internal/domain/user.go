package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `json:"id" bun:"id,pk,type:uuid"`
	Username     string    `json:"username" bun:"username,notnull,unique"`
	Email        string    `json:"email" bun:"email,notnull,unique"`
	PasswordHash string    `json:"-" bun:"password_hash,notnull"`
	Role         Role      `json:"role" bun:"role,notnull"`
	Active       bool      `json:"is_active" bun:"is_active,notnull"`
	TwoFactor    bool      `json:"is_2fa" bun:"is_2fa,notnull"`
	CreatedAt    time.Time `json:"created_at" bun:"created_at,notnull"`
	UpdatedAt    time.Time `json:"updated_at" bun:"updated_at,notnull"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ActivateRequest carries the code mailed to a freshly registered user.
// The len tag must match code.Length.
type ActivateRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Code   string `json:"code" validate:"required,len=5"`
}

type UpdateProfileRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=3,max=50"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
	TwoFactor *bool   `json:"is_2fa"`
}
