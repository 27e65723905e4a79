package models

import "time"

// Identity is the canonical directory record establishing that a student
// exists, independent of any offering. Code and email are both unique.
type Identity struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the name parts for display.
func (i Identity) FullName() string {
	if i.FirstName == "" {
		return i.LastName
	}
	if i.LastName == "" {
		return i.FirstName
	}
	return i.FirstName + " " + i.LastName
}
