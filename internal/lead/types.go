// Package lead provides the Postgres-backed lead store and the closed
// filter surface used by the list API.
package lead

import (
	"time"

	"github.com/google/uuid"
)

// Lead is one prospective customer record. Phone and Email are unique
// across the store; the database constraints are the final authority on
// that, client-side duplicate checking is only a UX layer.
type Lead struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"Name"`
	Phone           string    `json:"Phone"`
	Email           string    `json:"Email"`
	JobTitle        string    `json:"JobTitle"`
	State           string    `json:"State"`
	Country         string    `json:"Country"`
	Organization    string    `json:"Organization"`
	Source          string    `json:"Source"`
	Temperature     string    `json:"temperature"`
	Status          string    `json:"status"`
	Classification  string    `json:"classification"`
	Recency         *float64  `json:"recency"`
	Frequency       *float64  `json:"frequency"`
	Monetary        *float64  `json:"monetary"`
	Score           *float64  `json:"score"`
	CoursesAttended []string  `json:"coursesAttended"`
	Referrals       []string  `json:"referrals"`
	NextCourse      []string  `json:"next_course"`
	Timestamp       string    `json:"timestamp"`
	CreatedAt       string    `json:"created_at"`
	StatusUpdatedAt string    `json:"status_updated_at"`
}

// ImportLogEntry summarizes one CSV import run for the history view.
type ImportLogEntry struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	TotalRows   int       `json:"total_rows"`
	Inserted    int       `json:"inserted"`
	FailedRows  int       `json:"failed_rows"`
	Duplicates  int       `json:"duplicates"`
	Aborted     bool      `json:"aborted"`
	ActingUser  string    `json:"acting_user"`
	CompletedAt time.Time `json:"completed_at"`
}
