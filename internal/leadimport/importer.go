package leadimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/leadforge/crm/internal/pkg/logger"
)

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrNoHeader     = errors.New("no header row detected")
	ErrParseFailure = errors.New("file could not be parsed")
)

// LeadStore is the persistence surface the importer depends on. The
// concrete implementation lives in the lead package; tests supply fakes.
type LeadStore interface {
	// ExistingPhones returns which of the candidate phone values are
	// already persisted.
	ExistingPhones(ctx context.Context, phones []string) (map[string]struct{}, error)
	// ExistingEmails returns which of the candidate emails are already
	// persisted, compared case-insensitively; returned keys are lowercase.
	ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error)
	// InsertRecord persists one cleaned record.
	InsertRecord(ctx context.Context, rec Record) error
}

// Importer orchestrates parse → normalize → clean → duplicate-check →
// row-by-row insert for one uploaded CSV file.
type Importer struct {
	store      LeadStore
	normalizer *HeaderNormalizer
}

// NewImporter creates an importer over the given store.
func NewImporter(store LeadStore) *Importer {
	return &Importer{store: store, normalizer: NewHeaderNormalizer()}
}

// ImportBatch runs the full pipeline over one CSV stream. If any duplicate
// is detected, within the file or against persisted leads, the whole
// batch is rejected before a single insert happens. Otherwise rows are
// inserted one at a time and failures are collected per row; a failing row
// never stops the rest of the batch.
func (imp *Importer) ImportBatch(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := imp.parse(r)
	if err != nil {
		return nil, err
	}

	cleaned := make([]Record, len(rows))
	for i, raw := range rows {
		cleaned[i] = Clean(raw)
	}

	existingPhones, existingEmails, err := imp.lookupExisting(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("existing-lead lookup: %w", err)
	}

	result := &ImportResult{TotalProcessed: len(cleaned)}

	if dupes := DetectDuplicates(cleaned, existingPhones, existingEmails); len(dupes) > 0 {
		result.Duplicates = dupes
		result.Aborted = true
		logger.Warn("leadimport: batch rejected, duplicates found",
			"rows", len(cleaned), "duplicates", len(dupes))
		return result, nil
	}

	for i, rec := range cleaned {
		if err := imp.store.InsertRecord(ctx, rec); err != nil {
			result.Failed = append(result.Failed, classifyInsertError(i+1, rec, err))
			continue
		}
		result.Inserted++
	}

	logger.Info("leadimport: batch complete",
		"rows", result.TotalProcessed, "inserted", result.Inserted, "failed", len(result.Failed))
	return result, nil
}

// parse reads the CSV stream into raw rows keyed by normalized header.
// Unmapped headers keep their original name so the cleaner can drop them.
// A malformed file is an outright parse error, never partial data.
func (imp *Importer) parse(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	keys := imp.normalizer.NormalizeAll(header)

	var rows []map[string]any
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		raw := make(map[string]any, len(keys))
		for i, key := range keys {
			if i < len(row) {
				raw[key] = row[i]
			} else {
				raw[key] = ""
			}
		}
		rows = append(rows, raw)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func (imp *Importer) lookupExisting(ctx context.Context, rows []Record) (map[string]struct{}, map[string]struct{}, error) {
	var phones, emails []string
	for _, rec := range rows {
		if p := rec.String(FieldPhone); collidable(p) {
			phones = append(phones, p)
		}
		if e := strings.ToLower(rec.String(FieldEmail)); collidable(e) {
			emails = append(emails, e)
		}
	}

	existingPhones := map[string]struct{}{}
	existingEmails := map[string]struct{}{}
	var err error

	if len(phones) > 0 {
		existingPhones, err = imp.store.ExistingPhones(ctx, phones)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(emails) > 0 {
		existingEmails, err = imp.store.ExistingEmails(ctx, emails)
		if err != nil {
			return nil, nil, err
		}
	}
	return existingPhones, existingEmails, nil
}

// classifyInsertError turns a backend insert failure into a RowError,
// recognizing uniqueness-constraint violations by their error text. Two
// sessions importing overlapping leads both pass the client-side duplicate
// check; the constraint is the final authority and the loser shows up here.
func classifyInsertError(rowNum int, rec Record, err error) RowError {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		field, value := "", ""
		switch {
		case strings.Contains(msg, "phone"):
			field, value = FieldPhone, rec.String(FieldPhone)
		case strings.Contains(msg, "email"):
			field, value = FieldEmail, rec.String(FieldEmail)
		}
		if field != "" {
			return RowError{
				Row:            rowNum,
				Error:          fmt.Sprintf("%s %q already exists", field, value),
				DuplicateField: field,
				DuplicateValue: value,
			}
		}
	}
	return RowError{Row: rowNum, Error: err.Error()}
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present. ReadFull keeps
// reading until it has all three bytes, so a BOM split across short reads
// cannot leak into the first header.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return strings.NewReader(string(buf[:n]))
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
