package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID    string    `bun:"user_id,pk" json:"user_id"`
	FullName  string    `bun:"full_name,notnull" json:"fullName"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	Phone     string    `bun:"phone,nullzero" json:"phone,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// UserSummary is the profile projection attached to a confirmed booking.
type UserSummary struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{FullName: u.FullName, Email: u.Email}
}
