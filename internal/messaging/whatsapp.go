package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leadforge/crm/internal/deliverylog"
	"github.com/leadforge/crm/internal/pkg/httpretry"
	"github.com/leadforge/crm/internal/pkg/logger"
)

// WhatsAppClient calls the outbound WhatsApp send function. Sends go out
// without retries; a replayed send is a duplicate message on someone's
// phone. The read-only template listing retries transient failures.
type WhatsAppClient struct {
	sendURL      string
	templatesURL string
	authToken    string
	httpClient   *http.Client
	readClient   httpretry.Doer
}

// NewWhatsAppClient creates a client for the WhatsApp send and
// template-listing functions.
func NewWhatsAppClient(sendURL, templatesURL, authToken string) *WhatsAppClient {
	base := &http.Client{Timeout: 30 * time.Second}
	return &WhatsAppClient{
		sendURL:      sendURL,
		templatesURL: templatesURL,
		authToken:    authToken,
		httpClient:   base,
		readClient:   httpretry.New(base, 2),
	}
}

// Send delivers one message to one recipient and returns the provider
// message sid.
func (c *WhatsAppClient) Send(ctx context.Context, to, message, contentSid string, contentVariables map[string]string, mediaURL string) (string, error) {
	payload := map[string]interface{}{"to": to}
	if contentSid != "" {
		payload["contentSid"] = contentSid
		if len(contentVariables) > 0 {
			payload["contentVariables"] = contentVariables
		}
	} else {
		payload["message"] = message
	}
	if mediaURL != "" {
		payload["mediaUrl"] = mediaURL
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp function call: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		MessageSid string `json:"message_sid"`
		Sid        string `json:"sid"`
		Error      string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode >= 300 || result.Error != "" {
		errMsg := result.Error
		if errMsg == "" {
			errMsg = fmt.Sprintf("whatsapp function returned HTTP %d", resp.StatusCode)
		}
		return "", fmt.Errorf("%s", errMsg)
	}

	sid := result.MessageSid
	if sid == "" {
		sid = result.Sid
	}
	return sid, nil
}

// ListTemplates fetches the approved templates from the provider.
func (c *WhatsAppClient) ListTemplates(ctx context.Context) ([]Template, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.templatesURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.readClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("template listing call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("template listing returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Templates []Template `json:"templates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("template listing decode: %w", err)
	}
	return result.Templates, nil
}

// GetTemplate returns one template by id.
func (c *WhatsAppClient) GetTemplate(ctx context.Context, id string) (*Template, error) {
	templates, err := c.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == id {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("template %q not found", id)
}

// WhatsAppDispatcher iterates a recipient set sequentially, personalizes
// each message, and accumulates per-recipient outcomes. An individual
// failure never stops the rest of the batch.
type WhatsAppDispatcher struct {
	client *WhatsAppClient
	log    *deliverylog.Logger
}

// NewWhatsAppDispatcher creates a dispatcher over the given client and
// delivery logger.
func NewWhatsAppDispatcher(client *WhatsAppClient, log *deliverylog.Logger) *WhatsAppDispatcher {
	return &WhatsAppDispatcher{client: client, log: log}
}

// Send validates and dispatches a WhatsApp request. Validation failures
// happen before any network call; every attempt, success or failure, is
// logged per recipient.
func (d *WhatsAppDispatcher) Send(ctx context.Context, req *WhatsAppRequest) (*DispatchResult, error) {
	var tmpl *Template
	switch req.Mode {
	case ModeFreeform:
		if strings.TrimSpace(req.Body) == "" {
			return nil, ErrEmptyBody
		}
	case ModeTemplate:
		if req.TemplateID == "" {
			return nil, ErrNoTemplate
		}
		var err error
		tmpl, err = d.client.GetTemplate(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown whatsapp mode %q", req.Mode)
	}
	if len(req.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if tmpl != nil {
		if err := validateTemplateVariables(tmpl, req); err != nil {
			return nil, err
		}
	}

	result := &DispatchResult{}
	for _, rcpt := range req.Recipients {
		outcome := RecipientResult{Address: rcpt.Address}

		var sid string
		var err error
		switch req.Mode {
		case ModeFreeform:
			body := PersonalizeName(req.Body, rcpt.Name)
			sid, err = d.client.Send(ctx, rcpt.Address, body, "", nil, req.MediaURL)
		case ModeTemplate:
			vars := personalizeVariables(req.Variables, rcpt.Name)
			sid, err = d.client.Send(ctx, rcpt.Address, "", req.TemplateID, vars, "")
		}

		entry := &deliverylog.WhatsAppEntry{
			To:          rcpt.Address,
			Mode:        req.Mode,
			TemplateID:  req.TemplateID,
			BodySummary: summarize(req.Body),
			ActingUser:  req.ActingUser,
		}
		if err != nil {
			outcome.Error = err.Error()
			result.FailCount++
			entry.Status = deliverylog.StatusFailed
			entry.ErrorMessage = err.Error()
			logger.Warn("messaging: whatsapp send failed", "to", rcpt.Address, "error", err)
		} else {
			outcome.Success = true
			outcome.MessageSid = sid
			result.SuccessCount++
			entry.Status = deliverylog.StatusSent
			entry.MessageSid = sid
		}
		d.log.LogWhatsApp(ctx, entry)
		result.Results = append(result.Results, outcome)
	}

	return result, nil
}

// validateTemplateVariables rejects a templated send when any variable the
// template declares would be empty for any recipient after substitution.
func validateTemplateVariables(tmpl *Template, req *WhatsAppRequest) error {
	for _, name := range tmpl.Variables {
		raw, ok := req.Variables[name]
		if !ok {
			return fmt.Errorf("%w: %q is not set", ErrEmptyTemplateVar, name)
		}
		for _, rcpt := range req.Recipients {
			if strings.TrimSpace(PersonalizeName(raw, rcpt.Name)) == "" {
				return fmt.Errorf("%w: %q resolves empty for %s", ErrEmptyTemplateVar, name, rcpt.Address)
			}
		}
	}
	return nil
}

func personalizeVariables(vars map[string]string, name string) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = PersonalizeName(v, name)
	}
	return out
}

// ValidateImage checks WhatsApp media constraints before upload: image
// MIME type and the 5MB cap.
func ValidateImage(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return ErrMediaNotImage
	}
	if size > MaxImageSize {
		return ErrMediaTooLarge
	}
	return nil
}

func summarize(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 120 {
		return body[:117] + "..."
	}
	return body
}
