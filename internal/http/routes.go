package httpx

import (
	"log/slog"
	"net/http"

	"github.com/gagyekum/residency/internal/service"
)

// RouterOptions carries the service layer the HTTP surface exposes.
type RouterOptions struct {
	Messaging  *service.MessagingService
	Residences *service.ResidenceService
	Logger     *slog.Logger // optional
}

// NewRouter builds the ServeMux with every API route attached.
func NewRouter(opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	registerMessagingRoutes(mux, &MessagingHandlers{Svc: opts.Messaging, Logger: opts.Logger})
	registerResidenceRoutes(mux, &ResidenceHandlers{Svc: opts.Residences, Logger: opts.Logger})

	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)

	return mux
}

func registerMessagingRoutes(mux *http.ServeMux, h *MessagingHandlers) {
	mux.HandleFunc("POST /api/v1/messaging", h.Create)
	mux.HandleFunc("GET /api/v1/messaging", h.List)
	mux.HandleFunc("GET /api/v1/messaging/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/messaging/{id}", h.GetByID)
	mux.HandleFunc("GET /api/v1/messaging/{id}/status", h.GetStatus)
	mux.HandleFunc("GET /api/v1/messaging/{id}/email-recipients", h.EmailRecipients)
	mux.HandleFunc("GET /api/v1/messaging/{id}/sms-recipients", h.SMSRecipients)
	mux.HandleFunc("POST /api/v1/messaging/{id}/retry", h.Retry)
}

func registerResidenceRoutes(mux *http.ServeMux, h *ResidenceHandlers) {
	mux.HandleFunc("POST /api/v1/residences", h.Create)
	mux.HandleFunc("GET /api/v1/residences", h.List)
	mux.HandleFunc("POST /api/v1/residences/search", h.Search)
	mux.HandleFunc("GET /api/v1/residences/{id}", h.GetByID)
	mux.HandleFunc("PUT /api/v1/residences/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/residences/{id}", h.Delete)
}
