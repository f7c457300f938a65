package leadimport

import "strings"

// headerRule maps a set of keywords to a canonical field. The first rule
// whose keyword is contained in the stripped header wins, so rules for
// fields with overlapping vocabulary (status vs. status_updated_at,
// timestamp vs. the *_at columns) are ordered most-specific first.
type headerRule struct {
	field    string
	keywords []string
}

var headerRules = []headerRule{
	{FieldEmail, []string{"email", "mail"}},
	{FieldPhone, []string{"phone", "contact", "mobile", "whatsapp", "cell", "telephone", "number"}},
	{FieldJobTitle, []string{"job", "title", "occupation", "position", "work", "role", "designation"}},
	{FieldOrganization, []string{"organization", "organisation", "company", "firm", "employer", "institute"}},
	{FieldStatusUpdatedAt, []string{"statusupdated", "updated"}},
	{FieldCreatedAt, []string{"createdat", "created"}},
	{FieldTimestamp, []string{"timestamp", "date"}},
	{FieldStatus, []string{"status", "stage"}},
	{FieldTemperature, []string{"temperature", "temp", "warmth", "interest"}},
	{FieldClassification, []string{"classification", "category", "segment", "type"}},
	{FieldRecency, []string{"recency"}},
	{FieldFrequency, []string{"frequency"}},
	{FieldMonetary, []string{"monetary"}},
	{FieldScore, []string{"score", "rfm"}},
	{FieldNextCourse, []string{"nextcourse", "upcomingcourse"}},
	{FieldCoursesAttended, []string{"coursesattended", "courseattended", "attended", "courses"}},
	{FieldReferrals, []string{"referral"}},
	{FieldSource, []string{"source", "origin", "channel", "campaign", "referredby"}},
	{FieldState, []string{"state", "province", "region", "city"}},
	{FieldCountry, []string{"country", "nation"}},
	{FieldName, []string{"name", "fullname", "firstname", "lastname", "lead", "person"}},
}

// defaultExclusions are canonical fields the normalizer never auto-detects.
// The list fields are filled by the app after import, not from spreadsheets,
// so a column that happens to mention courses or referrals passes through
// unmapped and is dropped by the cleaner.
var defaultExclusions = map[string]bool{
	FieldCoursesAttended: true,
	FieldReferrals:       true,
	FieldNextCourse:      true,
}

// HeaderNormalizer maps arbitrary CSV column headers to canonical field
// names by keyword matching. Matching is case- and punctuation-insensitive.
type HeaderNormalizer struct {
	rules      []headerRule
	exclusions map[string]bool
}

// NewHeaderNormalizer returns a normalizer with the standard rule table
// and the default detection exclusions.
func NewHeaderNormalizer() *HeaderNormalizer {
	return &HeaderNormalizer{rules: headerRules, exclusions: defaultExclusions}
}

// WithExclusions replaces the set of canonical fields the normalizer
// refuses to detect.
func (n *HeaderNormalizer) WithExclusions(fields ...string) *HeaderNormalizer {
	excl := make(map[string]bool, len(fields))
	for _, f := range fields {
		excl[f] = true
	}
	return &HeaderNormalizer{rules: n.rules, exclusions: excl}
}

// Normalize maps one header to its canonical field name. Headers that match
// no rule (or only rules for excluded fields) are returned unchanged, so
// extra columns pass through verbatim and are later dropped by the cleaner.
func (n *HeaderNormalizer) Normalize(header string) string {
	stripped := stripHeader(header)
	if stripped == "" {
		return header
	}
	for _, rule := range n.rules {
		if n.exclusions[rule.field] {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(stripped, kw) {
				return rule.field
			}
		}
	}
	return header
}

// NormalizeAll maps a full header row.
func (n *HeaderNormalizer) NormalizeAll(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = n.Normalize(h)
	}
	return out
}

// stripHeader lowercases a header and drops every non-letter rune, so
// "E-mail Address", "email_address", and "Email Address " all compare equal.
func stripHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
