package models

import "time"

// Event represents a loggable account action in the system.
type Event struct {
	ID        string    `json:"id" db:"id"`
	Type      string    `json:"type" db:"type"`   // e.g., "user.register", "user.login.fail"
	Level     string    `json:"level" db:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message" db:"message"`
	UserID    *string   `json:"userId,omitempty" db:"user_id"` // Nullable when no account is known
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
