package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
)

// fakeStore — хранилище в памяти для тестов менеджера.
type fakeStore struct {
	containers  map[uuid.UUID]*domain.FormContainer
	forms       map[uuid.UUID]*domain.Form
	definitions map[uuid.UUID]*domain.WorkflowDefinition

	chains [][]domain.ScheduledStep
	single []*domain.ScheduledStep
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		containers:  make(map[uuid.UUID]*domain.FormContainer),
		forms:       make(map[uuid.UUID]*domain.Form),
		definitions: make(map[uuid.UUID]*domain.WorkflowDefinition),
	}
}

func (s *fakeStore) GetContainer(_ context.Context, id uuid.UUID) (*domain.FormContainer, error) {
	c, ok := s.containers[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) GetForm(_ context.Context, id uuid.UUID) (*domain.Form, error) {
	f, ok := s.forms[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return f, nil
}

func (s *fakeStore) GetDefinition(_ context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	d, ok := s.definitions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) CreateChain(_ context.Context, steps []domain.ScheduledStep) error {
	s.chains = append(s.chains, steps)
	return nil
}

func (s *fakeStore) CreateStep(_ context.Context, step *domain.ScheduledStep) error {
	s.single = append(s.single, step)
	return nil
}

// recordingMailer записывает письма вместо отправки.
type recordingMailer struct {
	sent    []notify.Message
	failErr error
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func setupManager(t *testing.T, store *fakeStore, mailer *recordingMailer) *Manager {
	t.Helper()
	return NewManager(Config{
		Store:    store,
		Mailer:   mailer,
		Resolver: &stubResolver{},
		Logger:   slog.New(slog.DiscardHandler),
		Now: func() time.Time {
			return time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
		},
	})
}

func seedContainer(store *fakeStore, container *domain.FormContainer) *domain.Form {
	form := testForm(container.ID)
	store.containers[container.ID] = container
	store.forms[form.ID] = form
	return form
}

func TestStartWorkflow_SendsInitialAndSchedules(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	mgr := setupManager(t, store, mailer)

	def := &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: "default",
		Steps: []domain.StepDef{
			{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 1},
			{ID: "r2", Kind: domain.StepKindReminder, DelayDays: 2},
		},
	}
	store.definitions[def.ID] = def

	container := testContainer()
	container.DefinitionID = &def.ID
	form := seedContainer(store, container)

	if err := mgr.StartWorkflow(context.Background(), container.ID, form.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первичное письмо респонденту
	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != container.UserEmail {
		t.Errorf("expected mail to %s, got %s", container.UserEmail, msg.To)
	}
	if msg.Sender != container.MailSender {
		t.Errorf("expected sender %s, got %s", container.MailSender, msg.Sender)
	}
	if msg.Template != notify.TemplateNewForm {
		t.Errorf("expected new_form template, got %s", msg.Template)
	}
	if msg.AccessToken != container.AccessToken {
		t.Errorf("expected access token %s, got %s", container.AccessToken, msg.AccessToken)
	}

	// Цепочка сохранена целиком
	if len(store.chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(store.chains))
	}
	if len(store.chains[0]) != 2 {
		t.Errorf("expected 2 steps in chain, got %d", len(store.chains[0]))
	}
}

func TestStartWorkflow_NoDefinition(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	mgr := setupManager(t, store, mailer)

	container := testContainer()
	form := seedContainer(store, container)

	if err := mgr.StartWorkflow(context.Background(), container.ID, form.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Письмо ушло, шаги не планировались
	if len(mailer.sent) != 1 {
		t.Errorf("expected 1 mail, got %d", len(mailer.sent))
	}
	if len(store.chains) != 0 {
		t.Errorf("expected no chains, got %d", len(store.chains))
	}
}

func TestStartWorkflow_InitialMailFailure(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{failErr: errors.New("smtp down")}
	mgr := setupManager(t, store, mailer)

	def := &domain.WorkflowDefinition{
		ID:    uuid.New(),
		Name:  "default",
		Steps: []domain.StepDef{{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 1}},
	}
	store.definitions[def.ID] = def

	container := testContainer()
	container.DefinitionID = &def.ID
	form := seedContainer(store, container)

	err := mgr.StartWorkflow(context.Background(), container.ID, form.ID)
	if err == nil {
		t.Fatal("expected error when initial mail fails")
	}

	// Сбой первички — цепочка не создаётся
	if len(store.chains) != 0 {
		t.Errorf("expected no chains after mail failure, got %d", len(store.chains))
	}
}

func TestStartWorkflow_ArchivedContainer(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	mgr := setupManager(t, store, mailer)

	container := testContainer()
	archived := time.Now()
	container.ArchivedAt = &archived
	form := seedContainer(store, container)

	err := mgr.StartWorkflow(context.Background(), container.ID, form.ID)
	if !errors.Is(err, ErrContainerArchived) {
		t.Fatalf("expected ErrContainerArchived, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("archived container must not receive mail")
	}
}

func TestStartWorkflow_DefinitionProducesNoSteps(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	mgr := setupManager(t, store, mailer)

	// Только эскалации при выключенном Escalate — пустая цепочка
	def := &domain.WorkflowDefinition{
		ID:    uuid.New(),
		Name:  "escalations-only",
		Steps: []domain.StepDef{{ID: "e1", Kind: domain.StepKindEscalation, DelayDays: 1}},
	}
	store.definitions[def.ID] = def

	container := testContainer()
	container.Escalate = false
	container.DefinitionID = &def.ID
	form := seedContainer(store, container)

	if err := mgr.StartWorkflow(context.Background(), container.ID, form.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.chains) != 0 {
		t.Errorf("expected no chain for empty schedule, got %d", len(store.chains))
	}
}

func TestTriggerManualEscalation(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	mgr := setupManager(t, store, mailer)

	container := testContainer()
	form := seedContainer(store, container)

	step, err := mgr.TriggerManualEscalation(context.Background(), container.ID, form.ID, "boss@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !step.Manual {
		t.Error("expected manual step")
	}
	if step.ManualEmail != "boss@example.com" {
		t.Errorf("expected manual email, got %q", step.ManualEmail)
	}
	if step.Kind != domain.StepKindEscalation {
		t.Errorf("expected escalation kind, got %s", step.Kind)
	}
	if step.Status != domain.StepStatusPending {
		t.Errorf("expected pending status, got %s", step.Status)
	}
	now := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	if !step.ETA.Equal(now) {
		t.Errorf("expected immediate eta %s, got %s", now, step.ETA)
	}
	if !step.CreatedAt.Equal(now) {
		t.Errorf("expected created_at %s, got %s", now, step.CreatedAt)
	}
	if len(store.single) != 1 {
		t.Errorf("expected step persisted, got %d", len(store.single))
	}

	// Письмо отправит воркер, не менеджер
	if len(mailer.sent) != 0 {
		t.Errorf("manual escalation must not send mail synchronously")
	}
}

func TestTriggerManualEscalation_FormNotOpen(t *testing.T) {
	store := newFakeStore()
	mgr := setupManager(t, store, &recordingMailer{})

	container := testContainer()
	form := seedContainer(store, container)
	form.Status = domain.FormStatusAnswered

	_, err := mgr.TriggerManualEscalation(context.Background(), container.ID, form.ID, "")
	if !errors.Is(err, ErrFormNotOpen) {
		t.Fatalf("expected ErrFormNotOpen, got %v", err)
	}
}

func TestTriggerManualEscalation_NoTarget(t *testing.T) {
	store := newFakeStore()
	mgr := setupManager(t, store, &recordingMailer{})

	container := testContainer()
	container.EscaladeEmail = ""
	form := seedContainer(store, container)

	_, err := mgr.TriggerManualEscalation(context.Background(), container.ID, form.ID, "")
	if !errors.Is(err, ErrNoEscalationTarget) {
		t.Fatalf("expected ErrNoEscalationTarget, got %v", err)
	}
}
