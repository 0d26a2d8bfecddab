package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose this to the client
	Profession   string    `json:"profession" db:"profession"`
	Contact      string    `json:"contact" db:"contact"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// Profile is the client-facing view of a user's personal details.
type Profile struct {
	Username   string `json:"username"`
	Profession string `json:"profession"`
	Contact    string `json:"contact"`
}

// Profile returns the personal details of u.
func (u User) Profile() Profile {
	return Profile{Username: u.Username, Profession: u.Profession, Contact: u.Contact}
}

// ProfileUpdate carries a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Username   *string `json:"username,omitempty"`
	Profession *string `json:"profession,omitempty"`
	Contact    *string `json:"contact,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Username == nil && p.Profession == nil && p.Contact == nil
}
