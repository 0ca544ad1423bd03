package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAffiliate Role = "affiliate"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAffiliate, RoleAdmin:
		return true
	}
	return false
}

type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// User is an account. PasswordHash is only ever written through SetPassword
// so a hash can never be double-hashed by an update path.
type User struct {
	UserID       string        `json:"user_id" gorm:"column:user_id;primaryKey"`
	Username     string        `json:"username" gorm:"column:username;uniqueIndex;not null"`
	Email        string        `json:"email" gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string        `json:"-" gorm:"column:password_hash;not null"`
	FirstName    string        `json:"first_name" gorm:"column:first_name"`
	LastName     string        `json:"last_name" gorm:"column:last_name"`
	Phone        string        `json:"phone" gorm:"column:phone;size:32"`
	Address      string        `json:"address" gorm:"column:address;type:text"`
	Role         Role          `json:"role" gorm:"column:role;size:16;not null;default:'customer'"`
	Status       AccountStatus `json:"status" gorm:"column:status;size:16;not null;default:'active'"`
	LastLogin    *time.Time    `json:"last_login" gorm:"column:last_login"`
	CreatedAt    time.Time     `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time     `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

// SetPassword hashes and stores the plaintext password.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether plain matches the stored hash.
func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}
