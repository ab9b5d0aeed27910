package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an authenticated account, distinct from the operator role
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Profile extends a user 1:1 with contact details
type Profile struct {
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Address   string    `json:"address" db:"address"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
