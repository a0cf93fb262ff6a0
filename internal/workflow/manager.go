package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/notify"
)

// Storage — хранилище, необходимое менеджеру workflow.
// Реализация: repo.WorkflowStore.
type Storage interface {
	GetContainer(ctx context.Context, id uuid.UUID) (*domain.FormContainer, error)
	GetForm(ctx context.Context, id uuid.UUID) (*domain.Form, error)
	GetDefinition(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error)
	CreateChain(ctx context.Context, steps []domain.ScheduledStep) error
	CreateStep(ctx context.Context, step *domain.ScheduledStep) error
}

// Manager запускает workflow рассылки для форм.
//
// StartWorkflow отправляет первичное уведомление и разворачивает
// определение workflow контейнера в цепочку запланированных шагов.
// Дальше цепочку ведут диспетчер и воркеры; менеджер к ней не
// возвращается.
type Manager struct {
	store    Storage
	mailer   notify.Mailer
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// Config — конфигурация Manager.
type Config struct {
	Store    Storage
	Mailer   notify.Mailer
	Resolver Resolver
	Logger   *slog.Logger

	// Now — источник времени, в тестах подменяется.
	Now func() time.Time
}

// NewManager создаёт новый Manager.
func NewManager(cfg Config) *Manager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:    cfg.Store,
		mailer:   cfg.Mailer,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
		now:      now,
	}
}

// StartWorkflow отправляет первичное уведомление получателю и
// планирует цепочку шагов по определению workflow контейнера.
//
// Первичное письмо отправляется синхронно: его сбой — ошибка вызова,
// цепочка не создаётся. Контейнер без определения workflow получает
// только первичное письмо.
func (m *Manager) StartWorkflow(ctx context.Context, containerID, formID uuid.UUID) error {
	container, err := m.store.GetContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("load container: %w", err)
	}
	if container.IsArchived() {
		return ErrContainerArchived
	}

	form, err := m.store.GetForm(ctx, formID)
	if err != nil {
		return fmt.Errorf("load form: %w", err)
	}
	if !form.IsOpen() {
		return ErrFormNotOpen
	}

	if err := m.sendInitialNotification(ctx, container); err != nil {
		return fmt.Errorf("send initial notification: %w", err)
	}

	if container.DefinitionID == nil {
		m.logger.Info("container has no workflow definition, no steps scheduled",
			"container_id", container.ID,
		)
		return nil
	}

	def, err := m.store.GetDefinition(ctx, *container.DefinitionID)
	if err != nil {
		return fmt.Errorf("load workflow definition: %w", err)
	}

	steps := BuildSchedule(def, container, form, m.now(), m.resolver)
	if len(steps) == 0 {
		m.logger.Warn("workflow definition produced no steps",
			"container_id", container.ID,
			"definition_id", def.ID,
			"escalate", container.Escalate,
		)
		return nil
	}

	if err := m.store.CreateChain(ctx, steps); err != nil {
		return fmt.Errorf("persist step chain: %w", err)
	}

	m.logger.Info("workflow started",
		"container_id", container.ID,
		"form_id", form.ID,
		"steps", len(steps),
		"first_eta", steps[0].ETA,
	)

	return nil
}

// sendInitialNotification отправляет получателю письмо с формой.
func (m *Manager) sendInitialNotification(ctx context.Context, container *domain.FormContainer) error {
	return m.mailer.Send(ctx, notify.Message{
		Sender:      container.MailSender,
		To:          container.UserEmail,
		CC:          container.CCEmails,
		Template:    notify.TemplateNewForm,
		AccessToken: container.AccessToken,
		Context: map[string]any{
			"title":       container.Title,
			"description": container.Description,
		},
	})
}

// TriggerManualEscalation планирует немедленную ручную эскалацию.
//
// Шаг создаётся с ETA в прошлом и подхватывается диспетчером в
// ближайший tick. email переопределяет EscaladeEmail контейнера;
// пустое значение использует адрес контейнера.
func (m *Manager) TriggerManualEscalation(ctx context.Context, containerID, formID uuid.UUID, email string) (*domain.ScheduledStep, error) {
	container, err := m.store.GetContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("load container: %w", err)
	}

	form, err := m.store.GetForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if !form.IsOpen() {
		return nil, ErrFormNotOpen
	}

	if email == "" && container.EscaladeEmail == "" {
		return nil, ErrNoEscalationTarget
	}

	now := m.now()
	step := &domain.ScheduledStep{
		ID:          uuid.New(),
		ContainerID: container.ID,
		FormID:      form.ID,
		StepID:      "manual",
		Kind:        domain.StepKindEscalation,
		ETA:         now,
		Status:      domain.StepStatusPending,
		Manual:      true,
		ManualEmail: email,
		CreatedAt:   now,
	}

	if err := m.store.CreateStep(ctx, step); err != nil {
		return nil, fmt.Errorf("persist manual escalation: %w", err)
	}

	m.logger.Info("manual escalation scheduled",
		"container_id", container.ID,
		"form_id", form.ID,
		"step_id", step.ID,
	)

	return step, nil
}
