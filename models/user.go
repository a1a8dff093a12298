package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `gorm:"uniqueIndex;not null;size:100" json:"username"`
	FullName     string    `gorm:"not null;size:200" json:"full_name"`
	Email        string    `gorm:"size:255" json:"email"`
	AvatarURL    string    `gorm:"size:500" json:"avatar_url"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"not null;size:20" json:"role"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Actor resolves the user's role into the authorization variant.
func (u *User) Actor() Actor {
	if u.IsAdmin() {
		return Administrator{ID: u.ID}
	}
	return Employee{ID: u.ID}
}

// UserSummary is the admin filter listing shape.
type UserSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}
