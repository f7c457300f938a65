package lead

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/leadforge/crm/internal/leadimport"
)

var leadRowColumns = []string{
	"id", "name", "phone", "email", "job_title", "state", "country", "organization", "source",
	"temperature", "status", "classification", "recency", "frequency", "monetary", "score",
	"courses_attended", "referrals", "next_course", "timestamp", "created_at", "status_updated_at",
}

func leadRow(id uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(leadRowColumns).AddRow(
		id, "Asha", "+919876543210", "asha@example.com", "Engineer", "Kerala", "India",
		"Acme", "webinar", "Warm", "Idle", "null", 3.0, 2.0, nil, 80.0,
		"{IGC}", "{}", "{IDIP}", "2025-03-10T05:00:00", "2025-03-10T05:00:00Z", "2025-03-10T05:00:00Z")
}

func TestInsertRecordPartialColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	// Only present fields appear in the column list.
	mock.ExpectExec(`INSERT INTO leads \(id, name, phone\)`).
		WithArgs(sqlmock.AnyArg(), "Asha", "+919876543210").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := leadimport.Record{
		leadimport.FieldName:  "Asha",
		leadimport.FieldPhone: "+919876543210",
	}
	if err := store.InsertRecord(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInsertRecordListColumns(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	// Every list field is written as an array literal, next_course included.
	mock.ExpectExec(`INSERT INTO leads \(id, name, courses_attended, next_course\)`).
		WithArgs(sqlmock.AnyArg(), "Asha", `{"IGC","IDIP"}`, `{"IGC"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := leadimport.Record{
		leadimport.FieldName:            "Asha",
		leadimport.FieldCoursesAttended: []string{"IGC", "IDIP"},
		leadimport.FieldNextCourse:      []string{"IGC"},
	}
	if err := store.InsertRecord(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExistingPhones(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT phone FROM leads WHERE phone = ANY`).
		WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow("+911111111111"))

	got, err := store.ExistingPhones(context.Background(), []string{"+911111111111", "+912222222222"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["+911111111111"]; !ok || len(got) != 1 {
		t.Errorf("existing = %v", got)
	}

	// Empty input never hits the database.
	if got, err := store.ExistingPhones(context.Background(), nil); err != nil || len(got) != 0 {
		t.Errorf("empty lookup: %v, %v", got, err)
	}
}

func TestGet(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(leadRow(id))

	l, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if l == nil || l.Name != "Asha" || l.Phone != "+919876543210" {
		t.Errorf("lead = %+v", l)
	}
	if l.Monetary != nil {
		t.Errorf("monetary = %v, want nil", *l.Monetary)
	}
	if l.Score == nil || *l.Score != 80 {
		t.Errorf("score = %v", l.Score)
	}
	// List columns come back as Postgres array literals.
	if len(l.CoursesAttended) != 1 || l.CoursesAttended[0] != "IGC" {
		t.Errorf("courses_attended = %v", l.CoursesAttended)
	}
	if len(l.NextCourse) != 1 || l.NextCourse[0] != "IDIP" {
		t.Errorf("next_course = %v", l.NextCourse)
	}
}

func TestGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(leadRowColumns))

	l, err := store.Get(context.Background(), uuid.New())
	if err != nil || l != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", l, err)
	}
}

func TestListWithFilters(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT .+ FROM leads WHERE status = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("Idle", 100, 0).
		WillReturnRows(leadRow(uuid.New()))

	leads, err := store.List(context.Background(),
		[]Filter{{Field: "status", Op: OpEquals, Value: "Idle"}}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 {
		t.Errorf("got %d leads", len(leads))
	}
}

func TestUpdateTouchesStatusTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	id := uuid.New()
	mock.ExpectExec(`UPDATE leads SET status = \$1, status_updated_at = \$2 WHERE id = \$3`).
		WithArgs("Converted", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Update(context.Background(), id, map[string]string{"status": "Converted"})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateUnknownField(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	err = store.Update(context.Background(), uuid.New(), map[string]string{"id": "nope"})
	if err == nil {
		t.Error("update accepted a non-whitelisted field")
	}
}

func TestDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectExec(`DELETE FROM leads WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.Delete(context.Background(), uuid.New())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("delete of a missing lead: got %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateStatusByPhone(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery(`UPDATE leads SET status = \$2, status_updated_at = \$3 WHERE phone = \$1 RETURNING`).
		WithArgs("+919876543210", "KB Requested", sqlmock.AnyArg()).
		WillReturnRows(leadRow(uuid.New()))

	l, err := store.UpdateStatusByPhone(context.Background(), "+919876543210", "KB Requested")
	if err != nil {
		t.Fatal(err)
	}
	if l == nil {
		t.Fatal("lead is nil")
	}

	// No matching phone is not an error.
	mock.ExpectQuery(`UPDATE leads SET status = \$2`).
		WillReturnRows(sqlmock.NewRows(leadRowColumns))
	l, err = store.UpdateStatusByPhone(context.Background(), "+910000000000", "KB Requested")
	if err != nil || l != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", l, err)
	}
}

func TestDuplicateField(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New(`duplicate key value violates unique constraint "leads_phone_unique"`), "Phone"},
		{errors.New(`duplicate key value violates unique constraint "leads_email_unique"`), "Email"},
		{errors.New("connection refused"), ""},
	}
	for _, tt := range tests {
		if got := DuplicateField(tt.err); got != tt.want {
			t.Errorf("DuplicateField(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
