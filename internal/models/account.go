package models

import "time"

// StudentAccount is the authentication-facing student entity, keyed by the
// unique student code. Accounts created by the import workflow carry a
// placeholder credential until the student claims the account.
type StudentAccount struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Email        string    `db:"email" json:"email"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
