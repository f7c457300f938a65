// Package leadimport implements the CSV lead ingestion pipeline: header
// normalization, per-field cleaning, duplicate detection, and batch import.
package leadimport

import "fmt"

// Canonical field names for a lead record. These are the only keys a
// cleaned record may carry; unmapped CSV columns are dropped by the cleaner.
const (
	FieldName            = "Name"
	FieldPhone           = "Phone"
	FieldEmail           = "Email"
	FieldJobTitle        = "JobTitle"
	FieldState           = "State"
	FieldCountry         = "Country"
	FieldOrganization    = "Organization"
	FieldSource          = "Source"
	FieldTemperature     = "temperature"
	FieldStatus          = "status"
	FieldClassification  = "classification"
	FieldRecency         = "recency"
	FieldFrequency       = "frequency"
	FieldMonetary        = "monetary"
	FieldScore           = "score"
	FieldCoursesAttended = "coursesAttended"
	FieldReferrals       = "referrals"
	FieldNextCourse      = "next_course"
	FieldTimestamp       = "timestamp"
	FieldCreatedAt       = "created_at"
	FieldStatusUpdatedAt = "status_updated_at"
)

// CanonicalFields lists every field of the lead schema in storage order.
var CanonicalFields = []string{
	FieldName, FieldPhone, FieldEmail,
	FieldJobTitle, FieldState, FieldCountry, FieldOrganization, FieldSource,
	FieldTemperature, FieldStatus, FieldClassification,
	FieldRecency, FieldFrequency, FieldMonetary, FieldScore,
	FieldCoursesAttended, FieldReferrals, FieldNextCourse,
	FieldTimestamp, FieldCreatedAt, FieldStatusUpdatedAt,
}

// Valid value sets for the classification fields.
var (
	ValidStatuses     = []string{"Converted", "Converting", "Idle", "KB Requested"}
	ValidTemperatures = []string{"Hot", "Warm", "Cold"}
	ValidNextCourses  = []string{"IDIP", "IGC", "OTHER"}
)

const (
	DefaultStatus      = "Idle"
	DefaultTemperature = "Cold"
)

// Record is a cleaned lead row keyed by canonical field name. Values are
// string, *float64 (rfm/score, nil for null), or []string (list fields).
// A field is present iff its source column existed in the file.
type Record map[string]any

// String returns the string value of a field, or "" if absent or non-string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Number returns the numeric value of a field, or nil.
func (r Record) Number(field string) *float64 {
	n, _ := r[field].(*float64)
	return n
}

// List returns the list value of a field, or nil.
func (r Record) List(field string) []string {
	l, _ := r[field].([]string)
	return l
}

// Duplicate error types.
const (
	DupInFile     = "file_duplicate"
	DupInDatabase = "database_duplicate"
)

// DuplicateError flags a phone or email collision for one row, either
// against an earlier row of the same file or against persisted records.
type DuplicateError struct {
	Field     string `json:"field"`
	Value     string `json:"value"`
	RowNumber int    `json:"row_number"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

// RowError records a per-row insert failure during batch import.
type RowError struct {
	Row            int    `json:"row"`
	Error          string `json:"error"`
	DuplicateField string `json:"duplicate_field,omitempty"`
	DuplicateValue string `json:"duplicate_value,omitempty"`
}

// ImportResult is the outcome of one batch import.
type ImportResult struct {
	TotalProcessed int              `json:"total_processed"`
	Inserted       int              `json:"inserted"`
	Failed         []RowError       `json:"failed,omitempty"`
	Duplicates     []DuplicateError `json:"duplicates,omitempty"`
	Aborted        bool             `json:"aborted"`
}

func (e DuplicateError) String() string {
	return fmt.Sprintf("row %d: %s", e.RowNumber, e.Message)
}
