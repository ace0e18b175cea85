package models

// Subject is the read-only subject metadata needed to build enrollments.
type Subject struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
