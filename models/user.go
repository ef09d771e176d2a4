package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserType is the platform role of an account.
type UserType string

const (
	UserFounder    UserType = "FOUNDER"
	UserInvestor   UserType = "INVESTOR"
	UserGovernment UserType = "GOVERNMENT"
	UserAspiring   UserType = "ASPIRING"
)

// ParseUserType normalizes a header or payload value; unknown values map to ASPIRING.
func ParseUserType(v string) UserType {
	switch t := UserType(strings.ToUpper(strings.TrimSpace(v))); t {
	case UserFounder, UserInvestor, UserGovernment, UserAspiring:
		return t
	default:
		return UserAspiring
	}
}

// User is the account row. Credentials live with the upstream identity provider.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"size:150;uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"size:255"`
	FullName  string    `json:"full_name" gorm:"size:255"`
	UserType  UserType  `json:"user_type" gorm:"size:20;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table short and explicit.
func (User) TableName() string { return "users" }

func (u User) String() string { return u.Username }

// BeforeCreate fills the default role.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserType == "" {
		u.UserType = UserAspiring
	}
	return nil
}
