package models

import "time"

// Course is the catalogue entry an offering instantiates.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Offering is a concrete run of a course in a given term.
type Offering struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Term      string    `db:"term" json:"term"`
	Year      int       `db:"year" json:"year"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OfferingDetail enriches Offering with course info.
type OfferingDetail struct {
	Offering
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// OfferingFilter provides filters for listing offerings.
type OfferingFilter struct {
	CourseID  string
	Term      string
	Year      int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
