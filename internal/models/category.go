package models

import "time"

// Category is a user-defined label for sessions.
type Category struct {
	ID        string
	UserID    string
	Name      string
	Color     string
	CreatedAt time.Time
}
