// Package domain contains core domain types for the countrychat application.
package domain

import (
	"time"
)

// User represents a registered user. Users are created on first successful
// login (or pre-seeded) and never mutated afterwards.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord is the durable representation of one conversation session.
// Events holds the serialized event log as JSON text; it is overwritten
// wholesale after every completed turn, never appended to.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Events    string    `json:"events"`
	CreatedAt time.Time `json:"created_at"`
}
