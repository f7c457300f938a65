package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadforge/crm/internal/deliverylog"
	"github.com/leadforge/crm/internal/pkg/logger"
)

// EmailClient calls the bulk email send function.
type EmailClient struct {
	sendURL    string
	authToken  string
	httpClient *http.Client
}

// NewEmailClient creates a client for the bulk email function.
func NewEmailClient(sendURL, authToken string) *EmailClient {
	return &EmailClient{
		sendURL:    sendURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type emailSendResponse struct {
	Success         bool   `json:"success"`
	RecipientsCount int    `json:"recipients_count"`
	MessageID       string `json:"message_id"`
	Error           string `json:"error"`
}

// SendBulk delivers one batch call to the email function. The function
// performs per-recipient variable substitution itself, so this is a single
// all-or-nothing HTTP call.
func (c *EmailClient) SendBulk(ctx context.Context, req *EmailRequest, attachments []Attachment) (*emailSendResponse, error) {
	recipients := make([]map[string]interface{}, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, map[string]interface{}{
			"email":     r.Address,
			"name":      r.Name,
			"variables": r.Variables,
		})
	}

	payload := map[string]interface{}{
		"recipients":  recipients,
		"subject":     req.Subject,
		"emailType":   req.Mode,
		"senderEmail": req.SenderEmail,
		"senderName":  req.SenderName,
	}
	if len(attachments) > 0 {
		payload["attachments"] = attachments
	}
	switch req.Mode {
	case ModeCustom:
		payload["customContent"] = req.Body
	case ModeTemplate:
		payload["templateData"] = map[string]interface{}{
			"name":      req.TemplateName,
			"variables": req.TemplateData,
		}
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("email function call: %w", err)
	}
	defer resp.Body.Close()

	var result emailSendResponse
	json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode >= 300 || (!result.Success && result.Error != "") {
		errMsg := result.Error
		if errMsg == "" {
			errMsg = fmt.Sprintf("email function returned HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s", errMsg)
	}
	return &result, nil
}

// EmailDispatcher validates, uploads attachments, and issues the batch
// send call, then logs the outcome.
type EmailDispatcher struct {
	client *EmailClient
	store  ObjectStore
	log    *deliverylog.Logger

	defaultSenderEmail string
	defaultSenderName  string
}

// NewEmailDispatcher creates a dispatcher over the given client, object
// store, and delivery logger.
func NewEmailDispatcher(client *EmailClient, store ObjectStore, log *deliverylog.Logger) *EmailDispatcher {
	return &EmailDispatcher{client: client, store: store, log: log}
}

// WithDefaultSender sets the sender used when a request does not name one.
func (d *EmailDispatcher) WithDefaultSender(email, name string) *EmailDispatcher {
	d.defaultSenderEmail = email
	d.defaultSenderName = name
	return d
}

func (d *EmailDispatcher) applyDefaults(req *EmailRequest) {
	if strings.TrimSpace(req.SenderEmail) == "" {
		req.SenderEmail = d.defaultSenderEmail
	}
	if strings.TrimSpace(req.SenderName) == "" {
		req.SenderName = d.defaultSenderName
	}
}

// Send validates and dispatches an email request. Validation is fail-fast
// and ordered: subject, recipients, sender, mode-specific fields, then
// attachment caps, all before any upload or network call. Attachment
// uploads run concurrently and are joined before the single send call.
func (d *EmailDispatcher) Send(ctx context.Context, req *EmailRequest) (*DispatchResult, error) {
	d.applyDefaults(req)
	if err := validateEmailRequest(req); err != nil {
		return nil, err
	}

	attachments, err := d.uploadAttachments(ctx, req.Attachments)
	if err != nil {
		return nil, err
	}
	defer d.removeAttachments(ctx, attachments)

	return d.dispatch(ctx, req, attachments)
}

// SendPrepared dispatches an email whose attachments were already uploaded
// (the API upload-then-send path). The same validation ordering applies;
// attachment caps are checked against the declared sizes.
func (d *EmailDispatcher) SendPrepared(ctx context.Context, req *EmailRequest, attachments []Attachment) (*DispatchResult, error) {
	d.applyDefaults(req)
	if err := validateEmailRequest(req); err != nil {
		return nil, err
	}

	var total int64
	for _, a := range attachments {
		if a.Size > MaxAttachmentSize {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentTooLarge, a.Filename)
		}
		total += a.Size
	}
	if total > MaxTotalAttachmentSize {
		return nil, ErrAttachmentsTotalSize
	}

	return d.dispatch(ctx, req, attachments)
}

func (d *EmailDispatcher) dispatch(ctx context.Context, req *EmailRequest, attachments []Attachment) (*DispatchResult, error) {
	resp, sendErr := d.client.SendBulk(ctx, req, attachments)
	d.logOutcome(ctx, req, resp, sendErr)
	if sendErr != nil {
		return nil, sendErr
	}

	result := &DispatchResult{SuccessCount: resp.RecipientsCount}
	if result.SuccessCount == 0 {
		result.SuccessCount = len(req.Recipients)
	}
	return result, nil
}

func validateEmailRequest(req *EmailRequest) error {
	if strings.TrimSpace(req.Subject) == "" {
		return ErrEmptySubject
	}
	if len(req.Recipients) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(req.SenderEmail) == "" {
		return ErrEmptySender
	}
	switch req.Mode {
	case ModeCustom:
		if strings.TrimSpace(req.Body) == "" {
			return ErrEmptyBody
		}
	case ModeTemplate:
		if strings.TrimSpace(req.TemplateName) == "" {
			return ErrNoTemplate
		}
	default:
		return fmt.Errorf("unknown email mode %q", req.Mode)
	}

	var total int64
	for _, a := range req.Attachments {
		if a.Size > MaxAttachmentSize {
			return fmt.Errorf("%w: %s", ErrAttachmentTooLarge, a.Filename)
		}
		total += a.Size
	}
	if total > MaxTotalAttachmentSize {
		return ErrAttachmentsTotalSize
	}
	return nil
}

// uploadAttachments pushes every pending attachment to object storage in
// parallel and joins before returning. Any single upload failure aborts
// the send and removes whatever was already uploaded.
func (d *EmailDispatcher) uploadAttachments(ctx context.Context, pending []PendingAttachment) ([]Attachment, error) {
	if len(pending) == 0 {
		return nil, nil
	}

	attachments := make([]Attachment, len(pending))
	errs := make([]error, len(pending))

	var wg sync.WaitGroup
	for i := range pending {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := pending[i]
			key := fmt.Sprintf("attachments/%s%s", uuid.New(), path.Ext(p.Filename))
			url, err := d.store.Upload(ctx, key, p.ContentType, p.Content)
			if err != nil {
				errs[i] = fmt.Errorf("upload %s: %w", p.Filename, err)
				return
			}
			attachments[i] = Attachment{
				Filename:    p.Filename,
				ContentType: p.ContentType,
				URL:         url,
				Size:        p.Size,
				key:         key,
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			d.removeAttachments(ctx, attachments)
			return nil, err
		}
	}
	return attachments, nil
}

// removeAttachments best-effort deletes the objects the dispatcher
// uploaded for one send. The email function has already fetched the
// content by the time the send call returns.
func (d *EmailDispatcher) removeAttachments(ctx context.Context, attachments []Attachment) {
	for _, a := range attachments {
		if a.key == "" {
			continue
		}
		if err := d.store.Delete(ctx, a.key); err != nil {
			logger.Warn("messaging: attachment cleanup failed", "key", a.key, "error", err)
		}
	}
}

// logOutcome writes delivery log rows: one per batch for template sends,
// one per personalized recipient for custom sends.
func (d *EmailDispatcher) logOutcome(ctx context.Context, req *EmailRequest, resp *emailSendResponse, sendErr error) {
	status := deliverylog.StatusSent
	errMsg := ""
	providerID := ""
	if sendErr != nil {
		status = deliverylog.StatusFailed
		errMsg = sendErr.Error()
	} else if resp != nil {
		providerID = resp.MessageID
	}

	if req.Mode == ModeTemplate {
		addresses := make([]string, 0, len(req.Recipients))
		for _, r := range req.Recipients {
			addresses = append(addresses, r.Address)
		}
		d.log.LogEmail(ctx, &deliverylog.EmailEntry{
			Sender:            req.SenderEmail,
			RecipientCount:    len(req.Recipients),
			Recipients:        addresses,
			Subject:           req.Subject,
			EmailType:         req.Mode,
			TemplateName:      req.TemplateName,
			ProviderMessageID: providerID,
			Status:            status,
			ErrorMessage:      errMsg,
			ActingUser:        req.ActingUser,
		})
		return
	}

	for _, r := range req.Recipients {
		d.log.LogEmail(ctx, &deliverylog.EmailEntry{
			Sender:            req.SenderEmail,
			RecipientCount:    1,
			Recipients:        []string{r.Address},
			Subject:           SubstituteVars(req.Subject, r.Variables),
			EmailType:         req.Mode,
			ProviderMessageID: providerID,
			Status:            status,
			ErrorMessage:      errMsg,
			Metadata:          r.Variables,
			ActingUser:        req.ActingUser,
		})
	}

	if sendErr != nil {
		logger.Warn("messaging: email batch failed",
			"recipients", len(req.Recipients), "mode", req.Mode, "error", sendErr)
	}
}
