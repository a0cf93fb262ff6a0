package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Definitions
	mux.Handle("GET /api/v1/definitions", chain(http.HandlerFunc(h.ListDefinitions)))
	mux.Handle("POST /api/v1/definitions", chain(http.HandlerFunc(h.CreateDefinition)))
	mux.Handle("GET /api/v1/definitions/{id}", chain(http.HandlerFunc(h.GetDefinition)))
	mux.Handle("DELETE /api/v1/definitions/{id}", chain(http.HandlerFunc(h.DeleteDefinition)))

	// Containers
	mux.Handle("GET /api/v1/containers", chain(http.HandlerFunc(h.ListContainers)))
	mux.Handle("POST /api/v1/containers", chain(http.HandlerFunc(h.CreateContainer)))
	mux.Handle("GET /api/v1/containers/{id}", chain(http.HandlerFunc(h.GetContainer)))
	mux.Handle("GET /api/v1/containers/{id}/timeline", chain(http.HandlerFunc(h.GetTimeline)))
	mux.Handle("GET /api/v1/containers/{id}/steps", chain(http.HandlerFunc(h.ListContainerSteps)))
	mux.Handle("POST /api/v1/containers/{id}/validate", chain(http.HandlerFunc(h.ValidateContainer)))
	mux.Handle("POST /api/v1/containers/{id}/cancel", chain(http.HandlerFunc(h.CancelContainer)))
	mux.Handle("POST /api/v1/containers/{id}/escalate", chain(http.HandlerFunc(h.EscalateContainer)))
	mux.Handle("POST /api/v1/containers/{id}/forms", chain(http.HandlerFunc(h.CreateFormRevision)))

	// Respondent surface (токен вместо аутентификации)
	mux.Handle("GET /api/v1/forms/{token}", chain(http.HandlerFunc(h.GetFormByToken)))
	mux.Handle("POST /api/v1/forms/{token}/answer", chain(http.HandlerFunc(h.AnswerForm)))
}
