package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leadforge/crm/internal/lead"
	"github.com/leadforge/crm/internal/leadimport"
	"github.com/leadforge/crm/internal/pkg/distlock"
	"github.com/leadforge/crm/internal/pkg/httputil"
	"github.com/leadforge/crm/internal/pkg/logger"
)

// maxImportSize caps uploaded CSV files at 20MB.
const maxImportSize = 20 * 1024 * 1024

// ImportHandler handles CSV batch imports.
type ImportHandler struct {
	importer *leadimport.Importer
	store    *lead.Store
	newLock  func() distlock.Lock
}

// NewImportHandler creates an import handler.
func NewImportHandler(importer *leadimport.Importer, store *lead.Store) *ImportHandler {
	return &ImportHandler{importer: importer, store: store}
}

// WithLock makes imports mutually exclusive across instances. Two imports
// racing each other would both pass the duplicate check against the store,
// so at most one batch may be in flight.
func (h *ImportHandler) WithLock(factory func() distlock.Lock) *ImportHandler {
	h.newLock = factory
	return h
}

// RegisterRoutes registers import routes on the provided router.
func (h *ImportHandler) RegisterRoutes(r chi.Router) {
	r.Post("/leads/import", h.HandleImport)
	r.Get("/leads/import/history", h.HandleHistory)
}

// HandleImport runs the full CSV pipeline over an uploaded file. A batch
// containing any duplicate is rejected outright with every duplicate
// message, before a single row is written.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if h.newLock != nil {
		lock := h.newLock()
		ok, err := lock.TryAcquire(r.Context())
		if err != nil {
			// Lock backend trouble degrades to unserialized imports rather
			// than blocking the upload.
			logger.Warn("api: import lock unavailable", "error", err)
		} else if !ok {
			httputil.Conflict(w, "another import is already running")
			return
		} else {
			defer lock.Release(r.Context())
		}
	}

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		httputil.BadRequest(w, "could not parse upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "a CSV file is required")
		return
	}
	defer file.Close()

	result, err := h.importer.ImportBatch(r.Context(), file)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	// Best-effort history row; a log failure never fails the import.
	if logErr := h.store.LogImport(r.Context(), &lead.ImportLogEntry{
		Filename:   header.Filename,
		TotalRows:  result.TotalProcessed,
		Inserted:   result.Inserted,
		FailedRows: len(result.Failed),
		Duplicates: len(result.Duplicates),
		Aborted:    result.Aborted,
		ActingUser: actingUser(r),
	}); logErr != nil {
		logger.Warn("api: import log write failed", "error", logErr)
	}

	if result.Aborted {
		httputil.ErrorWithDetails(w, http.StatusConflict,
			"import rejected: duplicate leads detected", result)
		return
	}
	httputil.OK(w, result)
}

// HandleHistory returns recent import runs.
func (h *ImportHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.store.ListImportLog(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*lead.ImportLogEntry{}
	}
	httputil.OK(w, entries)
}
