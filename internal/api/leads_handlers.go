package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadforge/crm/internal/lead"
	"github.com/leadforge/crm/internal/leadimport"
	"github.com/leadforge/crm/internal/notify"
	"github.com/leadforge/crm/internal/pkg/httputil"
)

// LeadHandler handles lead CRUD requests.
type LeadHandler struct {
	store *lead.Store
	hub   *notify.Hub
}

// NewLeadHandler creates a lead handler.
func NewLeadHandler(store *lead.Store, hub *notify.Hub) *LeadHandler {
	return &LeadHandler{store: store, hub: hub}
}

// RegisterRoutes registers lead CRUD routes on the provided router.
func (h *LeadHandler) RegisterRoutes(r chi.Router) {
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList returns leads matching optional filters. Filters arrive as a
// JSON-encoded list in the "filters" query parameter.
func (h *LeadHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var filters []lead.Filter
	if raw := r.URL.Query().Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			httputil.BadRequest(w, "invalid filters parameter")
			return
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	leads, err := h.store.List(r.Context(), filters, limit, offset)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if leads == nil {
		leads = []*lead.Lead{}
	}
	httputil.OK(w, leads)
}

// HandleCreate inserts a single lead. The raw body is cleaned through the
// same pipeline as CSV rows, so API-created leads obey the same defaults
// and clamps as imported ones.
func (h *LeadHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := httputil.DecodeJSON(r, &raw); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}

	rec := leadimport.Clean(raw)
	if rec.String(leadimport.FieldPhone) == "" && rec.String(leadimport.FieldEmail) == "" {
		httputil.BadRequest(w, "a phone or email is required")
		return
	}

	if err := h.store.InsertRecord(r.Context(), rec); err != nil {
		if field := lead.DuplicateField(err); field != "" {
			httputil.Conflict(w, fmt.Sprintf("a lead with this %s already exists", field))
			return
		}
		httputil.InternalError(w, err)
		return
	}

	h.hub.Publish(r.Context(), notify.LeadEvent{
		Table: "leads",
		Event: notify.EventCreated,
	})
	httputil.Created(w, rec)
}

// HandleGet returns one lead by id.
func (h *LeadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid lead id")
		return
	}

	l, err := h.store.Get(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if l == nil {
		httputil.NotFound(w, "lead not found")
		return
	}
	httputil.OK(w, l)
}

// HandleUpdate applies a partial update. Status changes emit a live-update
// event so open dashboards refresh.
func (h *LeadHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid lead id")
		return
	}

	var changes map[string]string
	if err := httputil.DecodeJSON(r, &changes); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}

	if err := h.store.Update(r.Context(), id, changes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "lead not found")
			return
		}
		if field := lead.DuplicateField(err); field != "" {
			httputil.Conflict(w, fmt.Sprintf("a lead with this %s already exists", field))
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}

	if status, changed := changes["status"]; changed {
		h.publishStatusEvent(r.Context(), id, status)
	}
	httputil.OK(w, map[string]string{"status": "updated"})
}

// HandleDelete removes a lead.
func (h *LeadHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid lead id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.NotFound(w, "lead not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *LeadHandler) publishStatusEvent(ctx context.Context, id uuid.UUID, status string) {
	event := notify.EventStatusChanged
	if status == "Converted" {
		event = notify.EventConverted
	}
	h.hub.Publish(ctx, notify.LeadEvent{
		Table:  "leads",
		LeadID: id.String(),
		Event:  event,
		Status: status,
	})
}
