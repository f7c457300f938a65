package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadforge/crm/internal/messaging"
	"github.com/leadforge/crm/internal/pkg/httputil"
)

// MessagingHandler handles outbound WhatsApp and email dispatch.
type MessagingHandler struct {
	whatsapp *messaging.WhatsAppDispatcher
	email    *messaging.EmailDispatcher
	client   *messaging.WhatsAppClient
	renderer *messaging.Renderer
	store    messaging.ObjectStore
}

// NewMessagingHandler creates a messaging handler.
func NewMessagingHandler(
	whatsapp *messaging.WhatsAppDispatcher,
	email *messaging.EmailDispatcher,
	client *messaging.WhatsAppClient,
	store messaging.ObjectStore,
) *MessagingHandler {
	return &MessagingHandler{
		whatsapp: whatsapp,
		email:    email,
		client:   client,
		renderer: messaging.NewRenderer(),
		store:    store,
	}
}

// RegisterRoutes registers messaging routes on the provided router.
func (h *MessagingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/messages", func(r chi.Router) {
		r.Post("/whatsapp", h.HandleSendWhatsApp)
		r.Post("/whatsapp/media", h.HandleUploadMedia)
		r.Get("/whatsapp/templates", h.HandleListTemplates)
		r.Post("/email", h.HandleSendEmail)
		r.Post("/email/preview", h.HandlePreview)
	})
}

// HandleSendWhatsApp dispatches a freeform or templated WhatsApp send.
func (h *MessagingHandler) HandleSendWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req messaging.WhatsAppRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	req.ActingUser = actingUser(r)

	result, err := h.whatsapp.Send(r.Context(), &req)
	if err != nil {
		if isValidationError(err) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandleUploadMedia validates and uploads a WhatsApp image, returning the
// public URL the send request should carry. The 5MB/image-MIME checks run
// before any byte reaches storage.
func (h *MessagingHandler) HandleUploadMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(messaging.MaxImageSize + 1024); err != nil {
		httputil.BadRequest(w, "could not parse upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "a media file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := messaging.ValidateImage(contentType, header.Size); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	key := fmt.Sprintf("media/%s_%s", uuid.New(), header.Filename)
	url, err := h.store.Upload(r.Context(), key, contentType, file)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"url": url})
}

// HandleListTemplates proxies the provider's template listing.
func (h *MessagingHandler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.client.ListTemplates(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, templates)
}

// emailSendPayload is the JSON shape of a send request; attachments are
// referenced by the URLs returned from prior uploads.
type emailSendPayload struct {
	messaging.EmailRequest
	Attachments []messaging.Attachment `json:"attachments,omitempty"`
}

// HandleSendEmail dispatches a custom or templated bulk email.
func (h *MessagingHandler) HandleSendEmail(w http.ResponseWriter, r *http.Request) {
	var payload emailSendPayload
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	req := payload.EmailRequest
	req.ActingUser = actingUser(r)

	result, err := h.email.SendPrepared(r.Context(), &req, payload.Attachments)
	if err != nil {
		if isValidationError(err) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// HandlePreview renders a template body against one variable map.
func (h *MessagingHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject   string            `json:"subject"`
		Body      string            `json:"body"`
		Variables map[string]string `json:"variables"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}

	subject, err := h.renderer.Render(req.Subject, req.Variables)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	body, err := h.renderer.Render(req.Body, req.Variables)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]string{"subject": subject, "body": body})
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		messaging.ErrNoRecipients, messaging.ErrEmptyBody, messaging.ErrEmptySubject,
		messaging.ErrEmptySender, messaging.ErrNoTemplate, messaging.ErrEmptyTemplateVar,
		messaging.ErrAttachmentTooLarge, messaging.ErrAttachmentsTotalSize,
		messaging.ErrMediaNotImage, messaging.ErrMediaTooLarge,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
