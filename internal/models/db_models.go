package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserDB struct {
	bun.BaseModel `bun:"table:Users,alias:u"`

	Email          string    `bun:"email,pk"`
	Password       *string   `bun:"password"`
	EncryptedEmail *string   `bun:"encryptedEmail"`
	IsPro          bool      `bun:"isPro,notnull,default:false"`
	FirstName      *string   `bun:"firstName"`
	CreatedAt      time.Time `bun:"createdAt,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updatedAt,notnull,default:current_timestamp"`
}

func (u *UserDB) ToUser() *User {
	user := &User{
		Email:     u.Email,
		IsPro:     u.IsPro,
		FirstName: u.FirstName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Password != nil {
		user.PasswordHash = *u.Password
	}
	if u.EncryptedEmail != nil {
		user.EncryptedEmail = *u.EncryptedEmail
	}
	return user
}

func UserFromDomain(user *User) *UserDB {
	return &UserDB{
		Email:          user.Email,
		Password:       nilIfEmpty(user.PasswordHash),
		EncryptedEmail: nilIfEmpty(user.EncryptedEmail),
		IsPro:          user.IsPro,
		FirstName:      user.FirstName,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
