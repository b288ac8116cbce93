package domain

import "time"

// User is the single record served by the benchmark API.
type User struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
