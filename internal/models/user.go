package models

import "time"

// User is an account. Users are deactivated, never deleted.
type User struct {
	ID             int        `db:"id" json:"id"`
	Username       string     `db:"username" json:"username"`
	Email          string     `db:"email" json:"email"`
	HashedPassword string     `db:"hashed_password" json:"-"`
	FullName       *string    `db:"full_name" json:"full_name"`
	ProfilePicURL  *string    `db:"profile_pic_url" json:"profile_pic_url"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at"`
}

// UserUpdate carries the optional fields of a self update.
type UserUpdate struct {
	Username      *string
	Email         *string
	FullName      *string
	ProfilePicURL *string
	Password      *string
}
