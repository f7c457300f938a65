package leadimport

import (
	"fmt"
	"strings"
)

// DetectDuplicates cross-checks Phone and Email uniqueness for a cleaned
// batch, both within the batch and against the supplied sets of already
// persisted values. Row numbers are 1-based in input order. Email
// comparison is case-insensitive; the literal "null" placeholder is never
// treated as a collidable value. A row may collect both a file_duplicate
// and a database_duplicate flag for the same field.
func DetectDuplicates(rows []Record, existingPhones, existingEmails map[string]struct{}) []DuplicateError {
	var errs []DuplicateError

	seenPhones := make(map[string]int, len(rows))
	seenEmails := make(map[string]int, len(rows))

	for i, rec := range rows {
		rowNum := i + 1

		phone := rec.String(FieldPhone)
		if collidable(phone) {
			if firstRow, seen := seenPhones[phone]; seen {
				errs = append(errs, DuplicateError{
					Field:     FieldPhone,
					Value:     phone,
					RowNumber: rowNum,
					Type:      DupInFile,
					Message:   fmt.Sprintf("phone %q duplicates row %d of this file", phone, firstRow),
				})
			} else {
				seenPhones[phone] = rowNum
			}
			if _, exists := existingPhones[phone]; exists {
				errs = append(errs, DuplicateError{
					Field:     FieldPhone,
					Value:     phone,
					RowNumber: rowNum,
					Type:      DupInDatabase,
					Message:   fmt.Sprintf("phone %q already exists in the lead store", phone),
				})
			}
		}

		email := strings.ToLower(rec.String(FieldEmail))
		if collidable(email) {
			if firstRow, seen := seenEmails[email]; seen {
				errs = append(errs, DuplicateError{
					Field:     FieldEmail,
					Value:     email,
					RowNumber: rowNum,
					Type:      DupInFile,
					Message:   fmt.Sprintf("email %q duplicates row %d of this file", email, firstRow),
				})
			} else {
				seenEmails[email] = rowNum
			}
			if _, exists := existingEmails[email]; exists {
				errs = append(errs, DuplicateError{
					Field:     FieldEmail,
					Value:     email,
					RowNumber: rowNum,
					Type:      DupInDatabase,
					Message:   fmt.Sprintf("email %q already exists in the lead store", email),
				})
			}
		}
	}

	return errs
}

func collidable(v string) bool {
	return v != "" && v != "null"
}
