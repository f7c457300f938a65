package leadimport

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// istOffset is the assumed source timezone of imported dates. Spreadsheets
// come from the sales team in India with naive local timestamps, so parsing
// subtracts this to get UTC.
const istOffset = 5*time.Hour + 30*time.Minute

// timeLayouts are tried in order when parsing imported date strings.
// None of them carry a zone; zoned inputs are handled separately and are
// not shifted.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"Jan 2, 2006",
}

// fieldRule cleans one raw value into its canonical form. now is injected
// so timestamp defaults are testable.
type fieldRule func(raw any, now time.Time) any

// fieldRules maps every canonical field to its cleaning rule. The cleaner
// applies this table uniformly; there is no per-field branching anywhere
// else in the pipeline.
var fieldRules = map[string]fieldRule{
	FieldName:            cleanText,
	FieldPhone:           cleanPhone,
	FieldEmail:           cleanText,
	FieldJobTitle:        cleanText,
	FieldState:           cleanText,
	FieldCountry:         cleanText,
	FieldOrganization:    cleanText,
	FieldSource:          cleanText,
	FieldClassification:  cleanText,
	FieldTemperature:     enumRule(ValidTemperatures, DefaultTemperature),
	FieldStatus:          enumRule(ValidStatuses, DefaultStatus),
	FieldRecency:         numberRule(6, 5),
	FieldFrequency:       numberRule(6, 5),
	FieldMonetary:        numberRule(6, 5),
	FieldScore:           numberRule(126, 125),
	FieldCoursesAttended: cleanStringList,
	FieldReferrals:       cleanStringList,
	FieldNextCourse:      cleanNextCourse,
	FieldTimestamp:       timeRule(false),
	FieldCreatedAt:       timeRule(true),
	FieldStatusUpdatedAt: timeRule(true),
}

// Clean normalizes one raw row into a canonical Record. Only canonical
// fields whose source column is present in the row are emitted; every
// emitted field gets a type-appropriate value, degrading to the documented
// default on any parse failure. Clean never returns an error.
func Clean(raw map[string]any) Record {
	return cleanAt(raw, time.Now().UTC())
}

func cleanAt(raw map[string]any, now time.Time) Record {
	rec := make(Record, len(fieldRules))
	for field, rule := range fieldRules {
		val, ok := raw[field]
		if !ok {
			continue
		}
		rec[field] = rule(val, now)
	}
	return rec
}

// nullLike reports whether a trimmed string counts as an absent value.
func nullLike(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "nil", "none", "n/a", "na", "-":
		return true
	}
	return false
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// cleanText trims plain string fields; absent values become the literal
// "null" so the stored record never has a missing column.
func cleanText(raw any, _ time.Time) any {
	s := asString(raw)
	if nullLike(s) {
		return "null"
	}
	return s
}

// cleanPhone normalizes phone numbers: spreadsheet exports mangle them into
// scientific notation ("9.19876e+11"), pad them with punctuation, or drop
// the country prefix.
func cleanPhone(raw any, _ time.Time) any {
	s := asString(raw)
	if nullLike(s) {
		return "null"
	}

	// Expand scientific-notation numerics before any stripping.
	if strings.ContainsAny(s, "eE") {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			s = strconv.FormatFloat(f, 'f', 0, 64)
		}
	}

	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "+" {
		return "null"
	}
	if len(cleaned) > 10 && !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}

// numberRule parses a numeric field, returning nil for non-numeric input
// and clamping values at or above limit down to clampTo.
func numberRule(limit, clampTo float64) fieldRule {
	return func(raw any, _ time.Time) any {
		var f float64
		switch v := raw.(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case string:
			s := strings.TrimSpace(v)
			if nullLike(s) {
				return (*float64)(nil)
			}
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return (*float64)(nil)
			}
			f = parsed
		default:
			return (*float64)(nil)
		}
		if f >= limit {
			f = clampTo
		}
		return &f
	}
}

// enumRule returns the value when it is exactly one of valid, and def
// otherwise, including for absent or null-like input.
func enumRule(valid []string, def string) fieldRule {
	return func(raw any, _ time.Time) any {
		s := asString(raw)
		for _, v := range valid {
			if s == v {
				return s
			}
		}
		return def
	}
}

// cleanStringList coerces a list field. Arrays pass through with trimming;
// strings are tried as a JSON array literal first, then comma-split.
func cleanStringList(raw any, _ time.Time) any {
	switch v := raw.(type) {
	case []string:
		return trimList(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, it := range v {
			items = append(items, asString(it))
		}
		return trimList(items)
	case string:
		s := strings.TrimSpace(v)
		if nullLike(s) {
			return []string{}
		}
		var parsed []any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			items := make([]string, 0, len(parsed))
			for _, it := range parsed {
				items = append(items, asString(it))
			}
			return trimList(items)
		}
		return trimList(strings.Split(s, ","))
	default:
		return []string{}
	}
}

// cleanNextCourse is cleanStringList restricted to the known course codes.
func cleanNextCourse(raw any, now time.Time) any {
	list, _ := cleanStringList(raw, now).([]string)
	out := make([]string, 0, len(list))
	for _, item := range list {
		upper := strings.ToUpper(strings.TrimSpace(item))
		for _, v := range ValidNextCourses {
			if upper == v {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			out = append(out, it)
		}
	}
	return out
}

// timeRule parses a date assumed to be IST and converts it to UTC.
// When utcMarker is set the result carries an explicit "Z" suffix
// (created_at, status_updated_at); otherwise it is serialized without a
// zone marker (timestamp). Invalid or missing input falls back to now.
func timeRule(utcMarker bool) fieldRule {
	return func(raw any, now time.Time) any {
		s := asString(raw)
		t := parseIST(s)
		if t.IsZero() {
			t = now
		}
		if utcMarker {
			return t.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		return t.UTC().Format("2006-01-02T15:04:05")
	}
}

func parseIST(s string) time.Time {
	if nullLike(s) {
		return time.Time{}
	}
	// An explicit zone means the value is not a naive IST date.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Add(-istOffset)
		}
	}
	return time.Time{}
}
