package lead

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Op is a filter operator. The set is closed: any operator the store does
// not know is rejected at build time rather than passed to the database.
type Op string

const (
	OpEquals      Op = "eq"
	OpNotEquals   Op = "neq"
	OpIn          Op = "in"
	OpGreaterThan Op = "gt"
	OpLessThan    Op = "lt"
	OpContains    Op = "contains"
)

// Filter is one column condition for a lead query.
type Filter struct {
	Field  string   `json:"field"`
	Op     Op       `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// filterColumns whitelists the fields a caller may filter on and maps them
// to their storage columns.
var filterColumns = map[string]string{
	"Name":           "name",
	"Phone":          "phone",
	"Email":          "email",
	"JobTitle":       "job_title",
	"State":          "state",
	"Country":        "country",
	"Organization":   "organization",
	"Source":         "source",
	"temperature":    "temperature",
	"status":         "status",
	"classification": "classification",
	"recency":        "recency",
	"frequency":      "frequency",
	"monetary":       "monetary",
	"score":          "score",
}

// numericColumns take float arguments for gt/lt comparisons.
var numericColumns = map[string]bool{
	"recency": true, "frequency": true, "monetary": true, "score": true,
}

// buildWhere interprets a filter list into a WHERE clause and argument
// slice. argIdx is the 1-based index of the next placeholder.
func buildWhere(filters []Filter, argIdx int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []interface{}

	for _, f := range filters {
		col, ok := filterColumns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", f.Field)
		}

		switch f.Op {
		case OpEquals:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, argIdx))
			args = append(args, f.Value)
			argIdx++
		case OpNotEquals:
			clauses = append(clauses, fmt.Sprintf("%s <> $%d", col, argIdx))
			args = append(args, f.Value)
			argIdx++
		case OpIn:
			if len(f.Values) == 0 {
				return "", nil, fmt.Errorf("in-list filter on %q needs values", f.Field)
			}
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", col, argIdx))
			args = append(args, pq.Array(f.Values))
			argIdx++
		case OpGreaterThan, OpLessThan:
			cmp := ">"
			if f.Op == OpLessThan {
				cmp = "<"
			}
			if numericColumns[col] {
				n, err := strconv.ParseFloat(f.Value, 64)
				if err != nil {
					return "", nil, fmt.Errorf("filter on %q needs a numeric value: %w", f.Field, err)
				}
				clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, cmp, argIdx))
				args = append(args, n)
			} else {
				clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, cmp, argIdx))
				args = append(args, f.Value)
			}
			argIdx++
		case OpContains:
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", col, argIdx))
			args = append(args, "%"+f.Value+"%")
			argIdx++
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
