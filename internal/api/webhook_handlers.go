package api

import (
	"net/http"
	"strings"

	"github.com/leadforge/crm/internal/lead"
	"github.com/leadforge/crm/internal/notify"
	"github.com/leadforge/crm/internal/pkg/httputil"
	"github.com/leadforge/crm/internal/pkg/logger"
)

// WebhookHandler consumes the messaging provider's inbound callback.
// A reply passes the keyword gate before anything touches the store;
// non-matching bodies are acknowledged and dropped.
type WebhookHandler struct {
	store *lead.Store
	hub   *notify.Hub
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(store *lead.Store, hub *notify.Hub) *WebhookHandler {
	return &WebhookHandler{store: store, hub: hub}
}

// interestedReply reports whether an inbound body counts as an expression
// of interest: case-insensitive "yes"/"ok"/bare "s", or any body
// mentioning "interested".
func interestedReply(body string) bool {
	b := strings.ToLower(strings.TrimSpace(body))
	switch b {
	case "yes", "ok", "s":
		return true
	}
	return strings.Contains(b, "interested")
}

// HandleInbound processes one provider callback. The payload is
// form-encoded: From, To, Body, MessageSid.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "could not parse form payload")
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	sid := r.PostFormValue("MessageSid")

	if !interestedReply(body) {
		httputil.OK(w, map[string]string{"status": "ignored"})
		return
	}

	l, err := h.store.UpdateStatusByPhone(r.Context(), from, "KB Requested")
	if err != nil {
		logger.Error("webhook: status update failed", "from", from, "error", err)
		httputil.InternalError(w, err)
		return
	}
	if l == nil {
		logger.Info("webhook: interested reply from unknown number", "from", from, "sid", sid)
		httputil.OK(w, map[string]string{"status": "no_matching_lead"})
		return
	}

	h.hub.Publish(r.Context(), notify.LeadEvent{
		Table:  "leads",
		LeadID: l.ID.String(),
		Event:  notify.EventStatusChanged,
		Status: l.Status,
	})

	logger.Info("webhook: lead marked KB Requested", "from", from, "lead_id", l.ID)
	httputil.OK(w, map[string]string{"status": "processed"})
}
