package domain

import "time"

// Policy is a stored Rego module that replaces the built-in device change policy while enabled.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
