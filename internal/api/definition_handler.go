package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
)

// CreateDefinition создаёт определение workflow.
// POST /api/v1/definitions
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req CreateDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	def := &domain.WorkflowDefinition{
		ID:        uuid.New(),
		Name:      req.Name,
		CreatedBy: req.CreatedBy,
		Steps:     req.Steps,
		CreatedAt: time.Now().UTC(),
	}
	if err := def.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.definitionRepo.Create(r.Context(), def); err != nil {
		HandleRepoError(w, h.logger, err, "")
		return
	}

	Created(w, DefinitionFromDomain(def))
}

// ListDefinitions возвращает все определения.
// GET /api/v1/definitions
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	definitions, err := h.definitionRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DefinitionResponse, len(definitions))
	for i := range definitions {
		result[i] = DefinitionFromDomain(&definitions[i])
	}

	List(w, result, len(result))
}

// GetDefinition возвращает определение по ID.
// GET /api/v1/definitions/{id}
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid definition id")
		return
	}

	def, err := h.definitionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "definition not found") {
		return
	}

	Success(w, DefinitionFromDomain(def))
}

// DeleteDefinition удаляет определение, если оно не используется.
// DELETE /api/v1/definitions/{id}
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid definition id")
		return
	}

	if err := h.definitionRepo.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "definition not found")
		return
	}

	NoContent(w)
}
