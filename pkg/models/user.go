package models

import (
	"time"
)

// Role controls what a user may see beyond their own resources.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account that owns workflows, executions and reviews.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanAccess reports whether the user may act on a resource owned by ownerID.
func (u *User) CanAccess(ownerID string) bool {
	return u.Role == RoleAdmin || u.ID == ownerID
}
