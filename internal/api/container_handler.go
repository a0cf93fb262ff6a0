package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/repo"
	"github.com/shaiso/Relance/internal/workflow"
)

// CreateContainer создаёт контейнер с первой формой и запускает workflow.
// POST /api/v1/containers
func (h *Handler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Title == "" {
		BadRequest(w, "title is required")
		return
	}
	if req.UserEmail == "" {
		BadRequest(w, "user_email is required")
		return
	}
	if req.MailSender == "" {
		BadRequest(w, "mail_sender is required")
		return
	}
	if req.Escalate && req.EscaladeEmail == "" {
		BadRequest(w, "escalade_email is required when escalate is enabled")
		return
	}

	// Определение должно существовать до создания контейнера
	if req.DefinitionID != nil {
		_, err := h.definitionRepo.GetByID(r.Context(), *req.DefinitionID)
		if HandleRepoError(w, h.logger, err, "workflow definition not found") {
			return
		}
	}

	token, err := newAccessToken()
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	now := time.Now().UTC()
	container := &domain.FormContainer{
		ID:             uuid.New(),
		Title:          req.Title,
		Description:    req.Description,
		UserEmail:      req.UserEmail,
		EscaladeEmail:  req.EscaladeEmail,
		CCEmails:       req.CCEmails,
		AccessToken:    token,
		MailSender:     req.MailSender,
		Escalate:       req.Escalate,
		UseWorkingDays: req.UseWorkingDays,
		Country:        req.Country,
		DefinitionID:   req.DefinitionID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.containerRepo.Create(r.Context(), container); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	form := &domain.Form{
		ID:          uuid.New(),
		ContainerID: container.ID,
		Status:      domain.FormStatusOpen,
		CreatedAt:   now,
	}
	if err := h.formRepo.Create(r.Context(), form); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.recordTimeline(r, container.ID, form.ID, "Form created", "sent to "+container.UserEmail)

	if err := h.manager.StartWorkflow(r.Context(), container.ID, form.ID); err != nil {
		// Контейнер и форма уже сохранены; не отправленное первичное
		// письмо — ошибка запроса, оператор повторит через новую ревизию
		h.logger.Error("failed to start workflow",
			"container_id", container.ID,
			"error", err,
		)
		Error(w, http.StatusBadGateway, ErrCodeInternalError, "container created but initial notification failed")
		return
	}

	Created(w, ContainerDetailResponse{
		ContainerResponse: ContainerFromDomain(container),
		Forms:             []FormResponse{FormFromDomain(form)},
	})
}

// ListContainers возвращает список контейнеров.
// GET /api/v1/containers?limit=...&offset=...
func (h *Handler) ListContainers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit = int(mustParseInt(limitStr, 50))
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset = int(mustParseInt(offsetStr, 0))
	}

	containers, err := h.containerRepo.List(r.Context(), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ContainerResponse, len(containers))
	for i := range containers {
		result[i] = ContainerFromDomain(&containers[i])
	}

	List(w, result, len(result))
}

// GetContainer возвращает контейнер с его формами.
// GET /api/v1/containers/{id}
func (h *Handler) GetContainer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	container, err := h.containerRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "container not found") {
		return
	}

	forms, err := h.formRepo.ListByContainer(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := ContainerDetailResponse{
		ContainerResponse: ContainerFromDomain(container),
		Forms:             make([]FormResponse, len(forms)),
	}
	for i := range forms {
		result.Forms[i] = FormFromDomain(&forms[i])
	}

	Success(w, result)
}

// GetTimeline возвращает аудиторский след контейнера.
// GET /api/v1/containers/{id}/timeline
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	if _, err := h.containerRepo.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "container not found") {
		return
	}

	entries, err := h.timelineRepo.ListByContainer(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TimelineEntryResponse, len(entries))
	for i := range entries {
		result[i] = TimelineFromDomain(&entries[i])
	}

	List(w, result, len(result))
}

// ListContainerSteps возвращает запланированные шаги контейнера.
// GET /api/v1/containers/{id}/steps
func (h *Handler) ListContainerSteps(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	steps, err := h.stepRepo.ListByContainer(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StepResponse, len(steps))
	for i := range steps {
		result[i] = StepFromDomain(&steps[i])
	}

	List(w, result, len(result))
}

// ValidateContainer подтверждает ответ и закрывает контейнер.
// POST /api/v1/containers/{id}/validate
//
// Открытая или отвеченная форма переходит в validated; оставшиеся
// шаги цепочки подавит первый же сработавший executor.
func (h *Handler) ValidateContainer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	container, err := h.containerRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "container not found") {
		return
	}

	form, err := h.currentForm(r, container.ID)
	if HandleRepoError(w, h.logger, err, "container has no active form") {
		return
	}

	if err := h.formRepo.TransitionStatus(r.Context(), form.ID, form.Status, domain.FormStatusValidated); err != nil {
		HandleRepoError(w, h.logger, err, "form not found")
		return
	}

	if err := h.containerRepo.SetValidated(r.Context(), container.ID); err != nil {
		HandleRepoError(w, h.logger, err, "container not found")
		return
	}

	h.recordTimeline(r, container.ID, form.ID, "Form validated", "")

	NoContent(w)
}

// CancelContainer отменяет контейнер и архивирует его.
// POST /api/v1/containers/{id}/cancel
func (h *Handler) CancelContainer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	var req CancelContainerRequest
	if r.Body != nil {
		// Тело опционально
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	container, err := h.containerRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "container not found") {
		return
	}
	if container.IsArchived() {
		InvalidState(w, "container is already archived")
		return
	}

	form, err := h.currentForm(r, container.ID)
	if HandleRepoError(w, h.logger, err, "container has no active form") {
		return
	}

	if err := h.formRepo.TransitionStatus(r.Context(), form.ID, form.Status, domain.FormStatusCanceled); err != nil {
		HandleRepoError(w, h.logger, err, "form not found")
		return
	}
	if req.Comment != "" {
		if err := h.formRepo.SetCancelComment(r.Context(), form.ID, req.Comment); err != nil {
			HandleRepoError(w, h.logger, err, "form not found")
			return
		}
	}

	if err := h.containerRepo.Archive(r.Context(), container.ID, time.Now().UTC()); err != nil {
		HandleRepoError(w, h.logger, err, "container not found")
		return
	}

	h.recordTimeline(r, container.ID, form.ID, "Form canceled", req.Comment)

	NoContent(w)
}

// EscalateContainer запускает ручную эскалацию.
// POST /api/v1/containers/{id}/escalate
func (h *Handler) EscalateContainer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	var req EscalateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	form, err := h.openForm(r, id)
	if HandleRepoError(w, h.logger, err, "container has no open form") {
		return
	}

	step, err := h.manager.TriggerManualEscalation(r.Context(), id, form.ID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrFormNotOpen):
			InvalidState(w, err.Error())
		case errors.Is(err, workflow.ErrNoEscalationTarget):
			BadRequest(w, err.Error())
		case errors.Is(err, repo.ErrNotFound):
			NotFound(w, "container not found")
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	Created(w, StepFromDomain(step))
}

// CreateFormRevision создаёт новую ревизию формы и перезапускает workflow.
// POST /api/v1/containers/{id}/forms
//
// Предыдущие отвеченные формы помечаются unsubstantial: их ответы
// вытеснены новой ревизией.
func (h *Handler) CreateFormRevision(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid container id")
		return
	}

	container, err := h.containerRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "container not found") {
		return
	}
	if container.IsArchived() {
		InvalidState(w, "container is archived")
		return
	}
	if container.Validated {
		InvalidState(w, "container is validated")
		return
	}

	// Открытая форма уже следит за контейнером — вторая не нужна
	if _, err := h.openForm(r, id); err == nil {
		Conflict(w, "container already has an open form")
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		InternalError(w, h.logger, err)
		return
	}

	form := &domain.Form{
		ID:          uuid.New(),
		ContainerID: container.ID,
		Status:      domain.FormStatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.formRepo.Create(r.Context(), form); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	superseded, err := h.formRepo.MarkSuperseded(r.Context(), container.ID, form.ID)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}
	if superseded > 0 {
		h.logger.Info("previous answers superseded",
			"container_id", container.ID,
			"count", superseded,
		)
	}

	h.recordTimeline(r, container.ID, form.ID, "New form revision", "sent to "+container.UserEmail)

	if err := h.manager.StartWorkflow(r.Context(), container.ID, form.ID); err != nil {
		h.logger.Error("failed to restart workflow",
			"container_id", container.ID,
			"error", err,
		)
		Error(w, http.StatusBadGateway, ErrCodeInternalError, "form created but notification failed")
		return
	}

	Created(w, FormFromDomain(form))
}

// GetFormByToken возвращает форму респондента по access token.
// GET /api/v1/forms/{token}
func (h *Handler) GetFormByToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	container, err := h.containerRepo.GetByAccessToken(r.Context(), token)
	if HandleRepoError(w, h.logger, err, "form not found") {
		return
	}

	form, err := h.openForm(r, container.ID)
	if HandleRepoError(w, h.logger, err, "form is no longer available") {
		return
	}

	Success(w, map[string]any{
		"title":       container.Title,
		"description": container.Description,
		"form":        FormFromDomain(form),
	})
}

// AnswerForm помечает форму отвеченной.
// POST /api/v1/forms/{token}/answer
//
// Смена статуса видна следующему сработавшему шагу: напоминания по
// отвеченной форме не отправляются.
func (h *Handler) AnswerForm(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	container, err := h.containerRepo.GetByAccessToken(r.Context(), token)
	if HandleRepoError(w, h.logger, err, "form not found") {
		return
	}

	form, err := h.openForm(r, container.ID)
	if HandleRepoError(w, h.logger, err, "form is no longer open") {
		return
	}

	if err := h.formRepo.TransitionStatus(r.Context(), form.ID, domain.FormStatusOpen, domain.FormStatusAnswered); err != nil {
		HandleRepoError(w, h.logger, err, "form not found")
		return
	}

	h.recordTimeline(r, container.ID, form.ID, "Form answered", "answered by "+container.UserEmail)

	NoContent(w)
}

// openForm возвращает открытую форму контейнера.
func (h *Handler) openForm(r *http.Request, containerID uuid.UUID) (*domain.Form, error) {
	forms, err := h.formRepo.ListByContainer(r.Context(), containerID)
	if err != nil {
		return nil, err
	}
	for i := range forms {
		if forms[i].IsOpen() {
			return &forms[i], nil
		}
	}
	return nil, repo.ErrNotFound
}

// currentForm возвращает форму, над которой работает оператор:
// открытую, иначе последнюю отвеченную.
func (h *Handler) currentForm(r *http.Request, containerID uuid.UUID) (*domain.Form, error) {
	forms, err := h.formRepo.ListByContainer(r.Context(), containerID)
	if err != nil {
		return nil, err
	}
	for i := range forms {
		if forms[i].IsOpen() {
			return &forms[i], nil
		}
	}
	for i := range forms {
		if forms[i].Status == domain.FormStatusAnswered {
			return &forms[i], nil
		}
	}
	return nil, repo.ErrNotFound
}

// recordTimeline добавляет запись timeline; сбой логируется и не
// прерывает запрос.
func (h *Handler) recordTimeline(r *http.Request, containerID, formID uuid.UUID, event, details string) {
	entry := &domain.TimelineEntry{
		ContainerID: containerID,
		FormID:      formID,
		Event:       event,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.timelineRepo.Append(r.Context(), entry); err != nil {
		h.logger.Warn("failed to append timeline entry",
			"container_id", containerID,
			"event", event,
			"error", err,
		)
	}
}

// newAccessToken генерирует непрозрачный токен доступа к форме.
func newAccessToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func mustParseInt(s string, defaultVal int64) int64 {
	if n, err := json.Number(s).Int64(); err == nil {
		return n
	}
	return defaultVal
}
