package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleClient    Role = "CLIENT"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk" json:"id"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Name         string     `bun:"name,notnull" json:"name"`
	Phone        string     `bun:"phone,nullzero" json:"phone,omitempty"`
	AvatarURL    string     `bun:"avatar_url,nullzero" json:"avatarUrl,omitempty"`
	Role         Role       `bun:"role,notnull" json:"role"`
	IsActive     bool       `bun:"is_active,notnull" json:"isActive"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	LastLoginAt  *time.Time `bun:"last_login_at" json:"lastLoginAt,omitempty"`
}
