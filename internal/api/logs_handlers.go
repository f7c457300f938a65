package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leadforge/crm/internal/deliverylog"
	"github.com/leadforge/crm/internal/pkg/httputil"
)

// LogsHandler exposes the delivery log for audit/reporting views.
type LogsHandler struct {
	log *deliverylog.Logger
}

// NewLogsHandler creates a logs handler.
func NewLogsHandler(log *deliverylog.Logger) *LogsHandler {
	return &LogsHandler{log: log}
}

// RegisterRoutes registers delivery log routes on the provided router.
func (h *LogsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/logs", func(r chi.Router) {
		r.Get("/email", h.HandleEmailLog)
		r.Get("/whatsapp", h.HandleWhatsAppLog)
	})
}

// HandleEmailLog returns recent email send log rows.
func (h *LogsHandler) HandleEmailLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.log.ListEmail(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*deliverylog.EmailEntry{}
	}
	httputil.OK(w, entries)
}

// HandleWhatsAppLog returns recent WhatsApp attempt rows.
func (h *LogsHandler) HandleWhatsAppLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.log.ListWhatsApp(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*deliverylog.WhatsAppEntry{}
	}
	httputil.OK(w, entries)
}
