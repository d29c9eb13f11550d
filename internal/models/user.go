package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
