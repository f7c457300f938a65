// Package messaging builds and sends outbound WhatsApp and bulk email
// payloads to a selected recipient set, with per-recipient personalization,
// attachment handling, and delivery logging.
package messaging

import (
	"context"
	"errors"
	"io"
)

// Channel modes.
const (
	ModeFreeform = "freeform"
	ModeTemplate = "template"
	ModeCustom   = "custom"
)

// Size caps, validated before any upload or send call.
const (
	MaxImageSize           = 5 * 1024 * 1024  // WhatsApp media
	MaxAttachmentSize      = 10 * 1024 * 1024 // per email attachment
	MaxTotalAttachmentSize = 25 * 1024 * 1024 // per email send
)

var (
	ErrNoRecipients         = errors.New("recipients list is empty")
	ErrEmptyBody            = errors.New("message body is required")
	ErrEmptySubject         = errors.New("subject is required")
	ErrEmptySender          = errors.New("sender address is required")
	ErrNoTemplate           = errors.New("a template must be selected")
	ErrEmptyTemplateVar     = errors.New("template variable is empty after substitution")
	ErrAttachmentTooLarge   = errors.New("attachment exceeds the 10MB limit")
	ErrAttachmentsTotalSize = errors.New("attachments exceed the 25MB combined limit")
	ErrMediaNotImage        = errors.New("media must be an image")
	ErrMediaTooLarge        = errors.New("media exceeds the 5MB limit")
)

// Recipient is one addressee with its personalization variables. Address
// is a phone number for WhatsApp and an email address for email.
type Recipient struct {
	Address   string            `json:"address"`
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables,omitempty"`
}

// WhatsAppRequest describes one WhatsApp dispatch, freeform or templated.
type WhatsAppRequest struct {
	Recipients []Recipient       `json:"recipients"`
	Mode       string            `json:"mode"`
	Body       string            `json:"body,omitempty"`
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	MediaURL   string            `json:"media_url,omitempty"`
	ActingUser string            `json:"-"`
}

// Attachment is one already-uploaded email attachment. Attachments the
// dispatcher uploaded itself are ephemeral and deleted after dispatch.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`

	// key is set only when the dispatcher uploaded the object itself.
	key string
}

// PendingAttachment is attachment content awaiting upload.
type PendingAttachment struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// EmailRequest describes one bulk email dispatch, custom or templated.
type EmailRequest struct {
	Recipients   []Recipient       `json:"recipients"`
	Mode         string            `json:"mode"`
	Subject      string            `json:"subject"`
	SenderEmail  string            `json:"sender_email"`
	SenderName   string            `json:"sender_name"`
	Body         string            `json:"body,omitempty"`
	TemplateName string            `json:"template_name,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Attachments  []PendingAttachment `json:"-"`
	ActingUser   string            `json:"-"`
}

// RecipientResult is the outcome of one per-recipient attempt.
type RecipientResult struct {
	Address    string `json:"address"`
	Success    bool   `json:"success"`
	MessageSid string `json:"message_sid,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DispatchResult aggregates a multi-recipient send.
type DispatchResult struct {
	SuccessCount int               `json:"success_count"`
	FailCount    int               `json:"fail_count"`
	Results      []RecipientResult `json:"results,omitempty"`
}

// Template is a provider-hosted message skeleton with named variables.
type Template struct {
	ID        string   `json:"id"`
	Name      string   `json:"display_name"`
	Status    string   `json:"status"`
	Body      string   `json:"body_text"`
	Variables []string `json:"variables"`
}

// ObjectStore is the storage surface the email dispatcher uploads
// attachments and media to.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}
