package leadimport

import (
	"testing"
	"time"
)

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"9876543210", "9876543210"},
		{"+91 98765 43210", "+919876543210"},
		{"919876543210", "+919876543210"},
		{"(987) 654-3210", "9876543210"},
		{"9.1987654321E+11", "+919876543210"},
		{float64(9876543210), "9876543210"},
		{"", "null"},
		{"N/A", "null"},
		{"abc", "null"},
		{"+", "null"},
		{nil, "null"},
	}

	for _, tt := range tests {
		rec := cleanAt(map[string]any{FieldPhone: tt.in}, time.Now())
		if got := rec.String(FieldPhone); got != tt.want {
			t.Errorf("cleanPhone(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanNumbers(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		field string
		in    any
		want  *float64
	}{
		{FieldRecency, "3", f(3)},
		{FieldRecency, "6", f(5)},
		{FieldRecency, "9.5", f(5)},
		{FieldFrequency, float64(2), f(2)},
		{FieldMonetary, "garbage", nil},
		{FieldMonetary, "", nil},
		{FieldScore, "125", f(125)},
		{FieldScore, "126", f(125)},
		{FieldScore, "500", f(125)},
		{FieldScore, "80", f(80)},
	}

	for _, tt := range tests {
		rec := cleanAt(map[string]any{tt.field: tt.in}, time.Now())
		got := rec.Number(tt.field)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%s(%v) = %v, want nil", tt.field, tt.in, *got)
		case tt.want != nil && got == nil:
			t.Errorf("%s(%v) = nil, want %v", tt.field, tt.in, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("%s(%v) = %v, want %v", tt.field, tt.in, *got, *tt.want)
		}
	}
}

func TestCleanEnums(t *testing.T) {
	tests := []struct {
		field string
		in    string
		want  string
	}{
		{FieldStatus, "Converted", "Converted"},
		{FieldStatus, "Bogus", "Idle"},
		{FieldStatus, "converted", "Idle"}, // exact match only
		{FieldStatus, "", "Idle"},
		{FieldTemperature, "Hot", "Hot"},
		{FieldTemperature, "Lukewarm", "Cold"},
		{FieldTemperature, "", "Cold"},
	}

	for _, tt := range tests {
		rec := cleanAt(map[string]any{tt.field: tt.in}, time.Now())
		if got := rec.String(tt.field); got != tt.want {
			t.Errorf("%s(%q) = %q, want %q", tt.field, tt.in, got, tt.want)
		}
	}
}

func TestCleanStringList(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{`["IGC", "IDIP"]`, []string{"IGC", "IDIP"}},
		{"IGC, IDIP", []string{"IGC", "IDIP"}},
		{"IGC", []string{"IGC"}},
		{[]string{" a ", "", "b"}, []string{"a", "b"}},
		{"", []string{}},
		{"null", []string{}},
		{42, []string{}},
	}

	for _, tt := range tests {
		rec := cleanAt(map[string]any{FieldCoursesAttended: tt.in}, time.Now())
		got := rec.List(FieldCoursesAttended)
		if len(got) != len(tt.want) {
			t.Errorf("coursesAttended(%v) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("coursesAttended(%v)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestCleanNextCourse(t *testing.T) {
	rec := cleanAt(map[string]any{FieldNextCourse: "igc, basket weaving, IDIP"}, time.Now())
	got := rec.List(FieldNextCourse)
	if len(got) != 2 || got[0] != "IGC" || got[1] != "IDIP" {
		t.Errorf("next_course = %v, want [IGC IDIP]", got)
	}
}

func TestCleanTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Naive source dates are IST; stored values are UTC.
	rec := cleanAt(map[string]any{
		FieldTimestamp:       "2025-03-10T10:30:00",
		FieldCreatedAt:       "2025-03-10T10:30:00",
		FieldStatusUpdatedAt: "garbage",
	}, now)

	if got := rec.String(FieldTimestamp); got != "2025-03-10T05:00:00" {
		t.Errorf("timestamp = %q, want 2025-03-10T05:00:00", got)
	}
	if got := rec.String(FieldCreatedAt); got != "2025-03-10T05:00:00Z" {
		t.Errorf("created_at = %q, want 2025-03-10T05:00:00Z", got)
	}
	// Unparseable dates fall back to now.
	if got := rec.String(FieldStatusUpdatedAt); got != "2025-06-01T12:00:00Z" {
		t.Errorf("status_updated_at fallback = %q, want 2025-06-01T12:00:00Z", got)
	}
}

// Dates carrying an explicit zone are already absolute and must not get
// the naive-IST shift.
func TestCleanZonedTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := cleanAt(map[string]any{
		FieldCreatedAt: "2025-03-10T10:30:00Z",
		FieldTimestamp: "2025-03-10T10:30:00+05:30",
	}, now)

	if got := rec.String(FieldCreatedAt); got != "2025-03-10T10:30:00Z" {
		t.Errorf("created_at = %q, want 2025-03-10T10:30:00Z", got)
	}
	if got := rec.String(FieldTimestamp); got != "2025-03-10T05:00:00" {
		t.Errorf("timestamp = %q, want 2025-03-10T05:00:00", got)
	}
}

func TestCleanFieldPresence(t *testing.T) {
	// A field is emitted iff its source column exists; a present-but-empty
	// column still gets its default.
	rec := cleanAt(map[string]any{FieldName: "Asha", FieldStatus: ""}, time.Now())

	if got := rec.String(FieldName); got != "Asha" {
		t.Errorf("Name = %q", got)
	}
	if got := rec.String(FieldStatus); got != "Idle" {
		t.Errorf("status = %q, want Idle", got)
	}
	if _, ok := rec[FieldPhone]; ok {
		t.Error("Phone emitted without a source column")
	}
	if _, ok := rec[FieldTemperature]; ok {
		t.Error("temperature emitted without a source column")
	}
}

func TestCleanNullLikeText(t *testing.T) {
	for _, in := range []string{"", "NULL", "None", "n/a", "-"} {
		rec := cleanAt(map[string]any{FieldEmail: in}, time.Now())
		if got := rec.String(FieldEmail); got != "null" {
			t.Errorf("Email(%q) = %q, want null", in, got)
		}
	}
}
