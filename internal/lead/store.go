package lead

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/leadforge/crm/internal/leadimport"
)

// Store provides database operations for leads.
type Store struct {
	db *sql.DB
}

// NewStore creates a new lead store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const leadColumns = `id, name, phone, email, job_title, state, country, organization, source,
	temperature, status, classification, recency, frequency, monetary, score,
	courses_attended, referrals, next_course, timestamp, created_at, status_updated_at`

// recordColumns maps canonical record fields to storage columns, in insert
// order.
var recordColumns = []struct {
	field  string
	column string
}{
	{leadimport.FieldName, "name"},
	{leadimport.FieldPhone, "phone"},
	{leadimport.FieldEmail, "email"},
	{leadimport.FieldJobTitle, "job_title"},
	{leadimport.FieldState, "state"},
	{leadimport.FieldCountry, "country"},
	{leadimport.FieldOrganization, "organization"},
	{leadimport.FieldSource, "source"},
	{leadimport.FieldTemperature, "temperature"},
	{leadimport.FieldStatus, "status"},
	{leadimport.FieldClassification, "classification"},
	{leadimport.FieldRecency, "recency"},
	{leadimport.FieldFrequency, "frequency"},
	{leadimport.FieldMonetary, "monetary"},
	{leadimport.FieldScore, "score"},
	{leadimport.FieldCoursesAttended, "courses_attended"},
	{leadimport.FieldReferrals, "referrals"},
	{leadimport.FieldNextCourse, "next_course"},
	{leadimport.FieldTimestamp, "timestamp"},
	{leadimport.FieldCreatedAt, "created_at"},
	{leadimport.FieldStatusUpdatedAt, "status_updated_at"},
}

// InsertRecord persists one cleaned import record. Only fields present in
// the record are written; absent columns fall back to database defaults.
func (s *Store) InsertRecord(ctx context.Context, rec leadimport.Record) error {
	cols := []string{"id"}
	placeholders := []string{"$1"}
	args := []interface{}{uuid.New()}

	for _, rc := range recordColumns {
		val, ok := rec[rc.field]
		if !ok {
			continue
		}
		if list, isList := val.([]string); isList {
			val = pq.Array(list)
		}
		cols = append(cols, rc.column)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, val)
	}

	query := fmt.Sprintf("INSERT INTO leads (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// ExistingPhones returns which of the candidate phone values already exist.
func (s *Store) ExistingPhones(ctx context.Context, phones []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(phones) == 0 {
		return existing, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT phone FROM leads WHERE phone = ANY($1)`, pq.Array(phones))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		existing[p] = struct{}{}
	}
	return existing, rows.Err()
}

// ExistingEmails returns which of the candidate emails already exist,
// compared case-insensitively. Returned keys are lowercase.
func (s *Store) ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(emails) == 0 {
		return existing, nil
	}

	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(e)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT LOWER(email) FROM leads WHERE LOWER(email) = ANY($1)`, pq.Array(lowered))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		existing[e] = struct{}{}
	}
	return existing, rows.Err()
}

// Insert persists a single lead created through the API.
func (s *Store) Insert(ctx context.Context, l *Lead) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		l.ID, l.Name, l.Phone, l.Email, l.JobTitle, l.State, l.Country, l.Organization, l.Source,
		l.Temperature, l.Status, l.Classification, l.Recency, l.Frequency, l.Monetary, l.Score,
		pq.Array(l.CoursesAttended), pq.Array(l.Referrals), pq.Array(l.NextCourse),
		l.Timestamp, l.CreatedAt, l.StatusUpdatedAt)
	return err
}

// Get retrieves a lead by id. Returns (nil, nil) when not found.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// List retrieves leads matching the given filters, newest first.
func (s *Store) List(ctx context.Context, filters []Filter, limit, offset int) ([]*Lead, error) {
	where, args, err := buildWhere(filters, 1)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// updateColumns whitelists the fields a partial update may touch.
var updateColumns = filterColumns

// Update applies a partial update by id. A status change also refreshes
// status_updated_at.
func (s *Store) Update(ctx context.Context, id uuid.UUID, changes map[string]string) error {
	if len(changes) == 0 {
		return nil
	}

	var sets []string
	var args []interface{}
	for field, val := range changes {
		col, ok := updateColumns[field]
		if !ok {
			return fmt.Errorf("unknown update field %q", field)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, val)
		if col == "status" {
			sets = append(sets, fmt.Sprintf("status_updated_at = $%d", len(args)+1))
			args = append(args, time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a lead by id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByPhone retrieves a lead by exact phone match. Returns (nil, nil)
// when not found.
func (s *Store) FindByPhone(ctx context.Context, phone string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// UpdateStatusByPhone flips a lead's status by phone number, refreshing
// status_updated_at. Used by the inbound webhook path.
func (s *Store) UpdateStatusByPhone(ctx context.Context, phone, status string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE leads SET status = $2, status_updated_at = $3 WHERE phone = $1 RETURNING `+leadColumns,
		phone, status, time.Now().UTC().Format("2006-01-02T15:04:05Z07:00"))
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

// LogImport records one import run summary, best-effort.
func (s *Store) LogImport(ctx context.Context, entry *ImportLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO lead_import_log
		(id, filename, total_rows, inserted, failed_rows, duplicates, aborted, acting_user, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Filename, entry.TotalRows, entry.Inserted, entry.FailedRows,
		entry.Duplicates, entry.Aborted, entry.ActingUser, entry.CompletedAt)
	return err
}

// ListImportLog returns recent import runs, newest first.
func (s *Store) ListImportLog(ctx context.Context, limit int) ([]*ImportLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, filename, total_rows, inserted,
		failed_rows, duplicates, aborted, acting_user, completed_at
		FROM lead_import_log ORDER BY completed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ImportLogEntry
	for rows.Next() {
		e := &ImportLogEntry{}
		if err := rows.Scan(&e.ID, &e.Filename, &e.TotalRows, &e.Inserted,
			&e.FailedRows, &e.Duplicates, &e.Aborted, &e.ActingUser, &e.CompletedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*Lead, error) {
	l := &Lead{}
	err := row.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.JobTitle, &l.State, &l.Country,
		&l.Organization, &l.Source, &l.Temperature, &l.Status, &l.Classification,
		&l.Recency, &l.Frequency, &l.Monetary, &l.Score,
		pq.Array(&l.CoursesAttended), pq.Array(&l.Referrals), pq.Array(&l.NextCourse),
		&l.Timestamp, &l.CreatedAt, &l.StatusUpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// DuplicateField inspects a constraint-violation error and reports which
// unique lead field it names, or "" when the error is not a duplicate.
func DuplicateField(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") && !strings.Contains(msg, "duplicate") {
		return ""
	}
	switch {
	case strings.Contains(msg, "phone"):
		return "Phone"
	case strings.Contains(msg, "email"):
		return "Email"
	}
	return ""
}
