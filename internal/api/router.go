// Package api provides the REST handlers for the CRM backend.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leadforge/crm/internal/pkg/httputil"
)

// Deps bundles the services the router exposes.
type Deps struct {
	Leads     *LeadHandler
	Import    *ImportHandler
	Messaging *MessagingHandler
	Logs      *LogsHandler
	Webhook   *WebhookHandler
}

// NewRouter builds the chi router with all routes registered.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Acting-User"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		deps.Leads.RegisterRoutes(r)
		deps.Import.RegisterRoutes(r)
		deps.Messaging.RegisterRoutes(r)
		deps.Logs.RegisterRoutes(r)
	})

	r.Post("/webhooks/whatsapp", deps.Webhook.HandleInbound)

	return r
}

// actingUser extracts the audit attribution header. Authentication proper
// is handled upstream of this service.
func actingUser(r *http.Request) string {
	return r.Header.Get("X-Acting-User")
}
