package models

// Student is the subset of a learner profile joined into analytics rankings.
type Student struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}
