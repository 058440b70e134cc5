package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // e.g., "owner", "staff"
	Status       string // "active", "suspended", "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
