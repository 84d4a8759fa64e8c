package models

import (
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
	RoleGuest   Role = "guest"
)

// User is the profile row an order points at. Staff rows are keyed by AuthID,
// guest rows by PhoneNumber.
type User struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthID      *string   `gorm:"type:varchar(36);uniqueIndex" json:"auth_id,omitempty"`
	PhoneNumber *string   `gorm:"type:varchar(20);uniqueIndex" json:"phone_number,omitempty"`
	Name        string    `gorm:"type:varchar(100)" json:"name"`
	Role        Role      `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Credential is the authentication identity of a staff member.
type Credential struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(100);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Credential) TableName() string {
	return "credentials"
}
