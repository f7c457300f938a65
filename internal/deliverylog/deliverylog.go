// Package deliverylog records the outcome of every outbound send attempt.
// Logging is fire-and-forget: a failure to write a log row is reported to
// stderr and swallowed, never surfaced to the user or allowed to fail the
// send that produced it.
package deliverylog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/leadforge/crm/internal/pkg/logger"
)

// Send attempt outcomes.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
	StatusQueued = "queued"
)

// EmailEntry is one email send log row. Template sends produce one row for
// the whole batch; custom sends produce one row per personalized recipient.
type EmailEntry struct {
	ID                uuid.UUID         `json:"id"`
	Sender            string            `json:"sender"`
	RecipientCount    int               `json:"recipient_count"`
	Recipients        []string          `json:"recipients"`
	Subject           string            `json:"subject"`
	EmailType         string            `json:"email_type"`
	TemplateName      string            `json:"template_name,omitempty"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	Status            string            `json:"status"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ActingUser        string            `json:"acting_user"`
	CreatedAt         time.Time         `json:"created_at"`
}

// WhatsAppEntry is one WhatsApp send attempt, logged per recipient for
// both successes and failures.
type WhatsAppEntry struct {
	ID           uuid.UUID `json:"id"`
	To           string    `json:"to"`
	Mode         string    `json:"mode"`
	TemplateID   string    `json:"template_id,omitempty"`
	BodySummary  string    `json:"body_summary,omitempty"`
	MessageSid   string    `json:"message_sid,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ActingUser   string    `json:"acting_user"`
	CreatedAt    time.Time `json:"created_at"`
}

// Logger persists delivery log entries to Postgres.
type Logger struct {
	db *sql.DB
}

// New creates a delivery logger.
func New(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// LogEmail writes one email log row. Errors are swallowed.
func (l *Logger) LogEmail(ctx context.Context, entry *EmailEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	meta, _ := json.Marshal(entry.Metadata)
	_, err := l.db.ExecContext(ctx, `INSERT INTO email_send_log
		(id, sender, recipient_count, recipients, subject, email_type, template_name,
		 provider_message_id, status, error_message, metadata, acting_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID, entry.Sender, entry.RecipientCount, pq.Array(entry.Recipients),
		entry.Subject, entry.EmailType, entry.TemplateName, entry.ProviderMessageID,
		entry.Status, entry.ErrorMessage, string(meta), entry.ActingUser, entry.CreatedAt)
	if err != nil {
		logger.Warn("deliverylog: email log write failed", "error", err, "status", entry.Status)
	}
}

// LogWhatsApp writes one WhatsApp attempt row. Errors are swallowed.
func (l *Logger) LogWhatsApp(ctx context.Context, entry *WhatsAppEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `INSERT INTO whatsapp_send_log
		(id, recipient, mode, template_id, body_summary, message_sid, status,
		 error_message, acting_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.To, entry.Mode, entry.TemplateID, entry.BodySummary,
		entry.MessageSid, entry.Status, entry.ErrorMessage, entry.ActingUser, entry.CreatedAt)
	if err != nil {
		logger.Warn("deliverylog: whatsapp log write failed", "error", err, "status", entry.Status)
	}
}

// ListEmail returns recent email log rows, newest first.
func (l *Logger) ListEmail(ctx context.Context, limit int) ([]*EmailEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, sender, recipient_count, recipients,
		subject, email_type, template_name, provider_message_id, status, error_message,
		metadata, acting_user, created_at
		FROM email_send_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*EmailEntry
	for rows.Next() {
		e := &EmailEntry{}
		var meta string
		if err := rows.Scan(&e.ID, &e.Sender, &e.RecipientCount, pq.Array(&e.Recipients),
			&e.Subject, &e.EmailType, &e.TemplateName, &e.ProviderMessageID, &e.Status,
			&e.ErrorMessage, &meta, &e.ActingUser, &e.CreatedAt); err != nil {
			return nil, err
		}
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListWhatsApp returns recent WhatsApp attempt rows, newest first.
func (l *Logger) ListWhatsApp(ctx context.Context, limit int) ([]*WhatsAppEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `SELECT id, recipient, mode, template_id,
		body_summary, message_sid, status, error_message, acting_user, created_at
		FROM whatsapp_send_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*WhatsAppEntry
	for rows.Next() {
		e := &WhatsAppEntry{}
		if err := rows.Scan(&e.ID, &e.To, &e.Mode, &e.TemplateID, &e.BodySummary,
			&e.MessageSid, &e.Status, &e.ErrorMessage, &e.ActingUser, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
