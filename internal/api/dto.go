package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
)

// Definition DTOs

// CreateDefinitionRequest — запрос на создание определения workflow.
type CreateDefinitionRequest struct {
	Name      string           `json:"name"`
	CreatedBy string           `json:"created_by,omitempty"`
	Steps     []domain.StepDef `json:"steps"`
}

// DefinitionResponse — ответ с определением workflow.
type DefinitionResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	CreatedBy string           `json:"created_by,omitempty"`
	Steps     []domain.StepDef `json:"steps"`
	CreatedAt time.Time        `json:"created_at"`
}

// DefinitionFromDomain конвертирует domain.WorkflowDefinition в DefinitionResponse.
func DefinitionFromDomain(d *domain.WorkflowDefinition) DefinitionResponse {
	return DefinitionResponse{
		ID:        d.ID,
		Name:      d.Name,
		CreatedBy: d.CreatedBy,
		Steps:     d.Steps,
		CreatedAt: d.CreatedAt,
	}
}

// Container DTOs

// CreateContainerRequest — запрос на создание контейнера формы.
type CreateContainerRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	UserEmail      string     `json:"user_email"`
	EscaladeEmail  string     `json:"escalade_email,omitempty"`
	CCEmails       []string   `json:"cc_emails,omitempty"`
	MailSender     string     `json:"mail_sender"`
	Escalate       bool       `json:"escalate"`
	UseWorkingDays bool       `json:"use_working_days"`
	Country        string     `json:"country,omitempty"`
	DefinitionID   *uuid.UUID `json:"definition_id,omitempty"`
}

// ContainerResponse — ответ с контейнером.
type ContainerResponse struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	UserEmail      string     `json:"user_email"`
	EscaladeEmail  string     `json:"escalade_email,omitempty"`
	CCEmails       []string   `json:"cc_emails,omitempty"`
	AccessToken    string     `json:"access_token"`
	MailSender     string     `json:"mail_sender"`
	Escalate       bool       `json:"escalate"`
	UseWorkingDays bool       `json:"use_working_days"`
	Country        string     `json:"country,omitempty"`
	Validated      bool       `json:"validated"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	DefinitionID   *uuid.UUID `json:"definition_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ContainerFromDomain конвертирует domain.FormContainer в ContainerResponse.
func ContainerFromDomain(c *domain.FormContainer) ContainerResponse {
	return ContainerResponse{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		UserEmail:      c.UserEmail,
		EscaladeEmail:  c.EscaladeEmail,
		CCEmails:       c.CCEmails,
		AccessToken:    c.AccessToken,
		MailSender:     c.MailSender,
		Escalate:       c.Escalate,
		UseWorkingDays: c.UseWorkingDays,
		Country:        c.Country,
		Validated:      c.Validated,
		ArchivedAt:     c.ArchivedAt,
		DefinitionID:   c.DefinitionID,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// Form DTOs

// FormResponse — ответ с формой.
type FormResponse struct {
	ID            uuid.UUID `json:"id"`
	ContainerID   uuid.UUID `json:"container_id"`
	Status        string    `json:"status"`
	WorkflowStep  string    `json:"workflow_step,omitempty"`
	CancelComment string    `json:"cancel_comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// FormFromDomain конвертирует domain.Form в FormResponse.
func FormFromDomain(f *domain.Form) FormResponse {
	return FormResponse{
		ID:            f.ID,
		ContainerID:   f.ContainerID,
		Status:        string(f.Status),
		WorkflowStep:  string(f.WorkflowStep),
		CancelComment: f.CancelComment,
		CreatedAt:     f.CreatedAt,
	}
}

// ContainerDetailResponse — контейнер вместе с его формами.
type ContainerDetailResponse struct {
	ContainerResponse
	Forms []FormResponse `json:"forms"`
}

// Step DTOs

// StepResponse — ответ с запланированным шагом.
type StepResponse struct {
	ID           uuid.UUID  `json:"id"`
	ContainerID  uuid.UUID  `json:"container_id"`
	FormID       uuid.UUID  `json:"form_id"`
	StepID       string     `json:"step_id"`
	Kind         string     `json:"kind"`
	ChainOrder   int        `json:"chain_order"`
	Seq          int        `json:"seq"`
	ETA          time.Time  `json:"eta"`
	Status       string     `json:"status"`
	Attempt      int        `json:"attempt"`
	Manual       bool       `json:"manual,omitempty"`
	Error        string     `json:"error,omitempty"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// StepFromDomain конвертирует domain.ScheduledStep в StepResponse.
func StepFromDomain(s *domain.ScheduledStep) StepResponse {
	return StepResponse{
		ID:           s.ID,
		ContainerID:  s.ContainerID,
		FormID:       s.FormID,
		StepID:       s.StepID,
		Kind:         string(s.Kind),
		ChainOrder:   s.ChainOrder,
		Seq:          s.Seq,
		ETA:          s.ETA,
		Status:       string(s.Status),
		Attempt:      s.Attempt,
		Manual:       s.Manual,
		Error:        s.Error,
		DispatchedAt: s.DispatchedAt,
		ExecutedAt:   s.ExecutedAt,
		CreatedAt:    s.CreatedAt,
	}
}

// Timeline DTOs

// TimelineEntryResponse — ответ с записью timeline.
type TimelineEntryResponse struct {
	ID        int64     `json:"id"`
	FormID    uuid.UUID `json:"form_id"`
	Event     string    `json:"event"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TimelineFromDomain конвертирует domain.TimelineEntry в TimelineEntryResponse.
func TimelineFromDomain(e *domain.TimelineEntry) TimelineEntryResponse {
	return TimelineEntryResponse{
		ID:        e.ID,
		FormID:    e.FormID,
		Event:     e.Event,
		Details:   e.Details,
		Timestamp: e.Timestamp,
	}
}

// Action DTOs

// CancelContainerRequest — запрос на отмену контейнера.
type CancelContainerRequest struct {
	Comment string `json:"comment,omitempty"`
}

// EscalateRequest — запрос на ручную эскалацию.
type EscalateRequest struct {
	// Email переопределяет EscaladeEmail контейнера; пустое значение
	// использует адрес контейнера.
	Email string `json:"email,omitempty"`
}
