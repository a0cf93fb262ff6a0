package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/calendar"
	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
	"github.com/shaiso/Relance/internal/workflow"
)

// fakeStore воспроизводит в памяти семантику условного захвата:
// claim выигрывается только из pending, терминальная форма подавляет
// оставшиеся pending-шаги.
type fakeStore struct {
	containers map[uuid.UUID]*domain.FormContainer
	forms      map[uuid.UUID]*domain.Form
	steps      map[uuid.UUID]*domain.ScheduledStep

	timeline []repo.CompleteParams

	completeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		containers: make(map[uuid.UUID]*domain.FormContainer),
		forms:      make(map[uuid.UUID]*domain.Form),
		steps:      make(map[uuid.UUID]*domain.ScheduledStep),
	}
}

func (s *fakeStore) GetStep(_ context.Context, id uuid.UUID) (*domain.ScheduledStep, error) {
	step, ok := s.steps[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *step
	return &copied, nil
}

func (s *fakeStore) GetContainer(_ context.Context, id uuid.UUID) (*domain.FormContainer, error) {
	c, ok := s.containers[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) ClaimStep(_ context.Context, stepID, formID uuid.UUID) (*domain.StepClaim, error) {
	form, ok := s.forms[formID]
	if !ok {
		if step, ok := s.steps[stepID]; ok && step.Status == domain.StepStatusPending {
			step.Status = domain.StepStatusSkipped
		}
		return &domain.StepClaim{FormMissing: true}, nil
	}

	if form.Status.IsTerminal() {
		var suppressed int64
		for _, step := range s.steps {
			if step.FormID == formID && step.Status == domain.StepStatusPending {
				step.Status = domain.StepStatusSkipped
				suppressed++
			}
		}
		return &domain.StepClaim{FormStatus: form.Status, Suppressed: suppressed}, nil
	}

	step, ok := s.steps[stepID]
	if !ok || step.Status != domain.StepStatusPending {
		return &domain.StepClaim{Claimed: false, FormStatus: form.Status}, nil
	}

	step.Status = domain.StepStatusProcessing
	step.Attempt++
	return &domain.StepClaim{Claimed: true, FormStatus: form.Status}, nil
}

func (s *fakeStore) CompleteStep(_ context.Context, p repo.CompleteParams) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	step, ok := s.steps[p.StepID]
	if !ok || step.Status != domain.StepStatusProcessing {
		return repo.ErrInvalidState
	}
	step.Status = domain.StepStatusSent
	if form, ok := s.forms[p.FormID]; ok {
		form.WorkflowStep = p.WorkflowStep
	}
	s.timeline = append(s.timeline, p)
	return nil
}

func (s *fakeStore) ReleaseStep(_ context.Context, stepID uuid.UUID, reason string) error {
	step, ok := s.steps[stepID]
	if !ok || step.Status != domain.StepStatusProcessing {
		return repo.ErrNotFound
	}
	step.Status = domain.StepStatusPending
	step.Error = reason
	return nil
}

func (s *fakeStore) FailStep(_ context.Context, stepID uuid.UUID, reason string) error {
	step, ok := s.steps[stepID]
	if !ok || step.Status != domain.StepStatusProcessing {
		return repo.ErrNotFound
	}
	step.Status = domain.StepStatusFailed
	step.Error = reason
	return nil
}

func (s *fakeStore) ListDue(_ context.Context, now time.Time, _ time.Duration, limit int) ([]domain.ScheduledStep, error) {
	var due []domain.ScheduledStep
	for _, step := range s.steps {
		if step.Status == domain.StepStatusPending && !step.ETA.After(now) {
			due = append(due, *step)
			if len(due) >= limit {
				break
			}
		}
	}
	return due, nil
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

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// seed создаёт контейнер, открытую форму и pending-шаг.
func seed(store *fakeStore, kind domain.StepKind) *domain.ScheduledStep {
	container := &domain.FormContainer{
		ID:            uuid.New(),
		Title:         "Survey",
		UserEmail:     "user@example.com",
		EscaladeEmail: "manager@example.com",
		MailSender:    "noreply@example.com",
		AccessToken:   "tok-123",
		CCEmails:      []string{"cc@example.com"},
		Escalate:      true,
	}
	form := &domain.Form{
		ID:          uuid.New(),
		ContainerID: container.ID,
		Status:      domain.FormStatusOpen,
	}
	step := &domain.ScheduledStep{
		ID:          uuid.New(),
		ContainerID: container.ID,
		FormID:      form.ID,
		StepID:      "s1",
		Kind:        kind,
		Seq:         1,
		ETA:         time.Now().Add(-time.Minute),
		Status:      domain.StepStatusPending,
	}

	store.containers[container.ID] = container
	store.forms[form.ID] = form
	store.steps[step.ID] = step
	return step
}

func TestReminderExecutor_SendsAndCompletes(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &ReminderExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindReminder)

	outcome, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Message)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "user@example.com" {
		t.Errorf("reminder must go to the respondent, got %s", msg.To)
	}
	if msg.Template != notify.TemplateReminder {
		t.Errorf("expected reminder template, got %s", msg.Template)
	}
	if len(msg.CC) != 1 || msg.CC[0] != "cc@example.com" {
		t.Errorf("cc emails must be carried over, got %v", msg.CC)
	}

	if store.steps[step.ID].Status != domain.StepStatusSent {
		t.Errorf("expected step sent, got %s", store.steps[step.ID].Status)
	}
	if len(store.timeline) != 1 {
		t.Fatalf("expected 1 timeline entry, got %d", len(store.timeline))
	}
	if store.timeline[0].Event != "Reminder 1 sent" {
		t.Errorf("unexpected timeline event: %q", store.timeline[0].Event)
	}
}

func TestReminderExecutor_IdempotentOnTerminalForm(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &ReminderExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindReminder)
	store.forms[step.FormID].Status = domain.FormStatusValidated

	// Двойная доставка одного события: оба раза пропуск, ни одного письма
	for i := 0; i < 2; i++ {
		outcome, err := executor.Execute(context.Background(), step)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
		if outcome.Status != domain.OutcomeSkipped {
			t.Fatalf("attempt %d: expected skipped, got %s", i, outcome.Status)
		}
	}

	if len(mailer.sent) != 0 {
		t.Errorf("no mail may be sent for a closed form, got %d", len(mailer.sent))
	}
	if len(store.timeline) != 0 {
		t.Errorf("no timeline entries expected, got %d", len(store.timeline))
	}
	if store.steps[step.ID].Status != domain.StepStatusSkipped {
		t.Errorf("expected step skipped, got %s", store.steps[step.ID].Status)
	}
}

func TestReminderExecutor_TerminalFormSuppressesChain(t *testing.T) {
	store := newFakeStore()
	executor := &ReminderExecutor{store: store, mailer: &recordingMailer{}, logger: discardLogger()}

	step := seed(store, domain.StepKindReminder)
	// Второй pending-шаг той же формы
	later := *store.steps[step.ID]
	later.ID = uuid.New()
	later.ChainOrder = 1
	later.Seq = 2
	store.steps[later.ID] = &later

	store.forms[step.FormID].Status = domain.FormStatusAnswered

	if _, err := executor.Execute(context.Background(), step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.steps[later.ID].Status != domain.StepStatusSkipped {
		t.Errorf("remaining chain steps must be suppressed, got %s", store.steps[later.ID].Status)
	}
}

func TestReminderExecutor_FormMissing(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &ReminderExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindReminder)
	delete(store.forms, step.FormID)

	outcome, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome.Status)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("no mail expected for missing form")
	}
}

func TestReminderExecutor_MailFailureReleasesStep(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{failErr: errors.New("smtp down")}
	executor := &ReminderExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindReminder)

	_, err := executor.Execute(context.Background(), step)
	if err == nil {
		t.Fatal("expected infrastructure error")
	}

	// Шаг вернулся в pending: повторная доставка снова его захватит
	if store.steps[step.ID].Status != domain.StepStatusPending {
		t.Errorf("expected step released to pending, got %s", store.steps[step.ID].Status)
	}
	if store.steps[step.ID].Error == "" {
		t.Error("release must record the failure reason")
	}
}

func TestReminderExecutor_CompletionFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	store.completeErr = errors.New("db down")
	mailer := &recordingMailer{}
	executor := &ReminderExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindReminder)

	outcome, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("completion failure is not an infrastructure error: %v", err)
	}
	if outcome.Status != domain.OutcomeError {
		t.Fatalf("expected error outcome, got %s", outcome.Status)
	}

	// Письмо ушло, шаг не повторяется
	if len(mailer.sent) != 1 {
		t.Errorf("mail was sent before the failure, got %d", len(mailer.sent))
	}
	if store.steps[step.ID].Status != domain.StepStatusFailed {
		t.Errorf("expected step failed, got %s", store.steps[step.ID].Status)
	}
}

func TestEscalationExecutor_SendsToManager(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &EscalationExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindEscalation)

	outcome, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", outcome.Status, outcome.Message)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(mailer.sent))
	}
	if mailer.sent[0].To != "manager@example.com" {
		t.Errorf("escalation must go to EscaladeEmail, got %s", mailer.sent[0].To)
	}
	if store.timeline[0].Event != "Automatic Escalation" {
		t.Errorf("unexpected timeline event: %q", store.timeline[0].Event)
	}
}

func TestEscalationExecutor_ManualEmailOverride(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &EscalationExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindEscalation)
	store.steps[step.ID].Manual = true
	store.steps[step.ID].ManualEmail = "boss@example.com"
	step.Manual = true
	step.ManualEmail = "boss@example.com"

	if _, err := executor.Execute(context.Background(), step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mailer.sent[0].To != "boss@example.com" {
		t.Errorf("manual email must override EscaladeEmail, got %s", mailer.sent[0].To)
	}
	if store.timeline[0].Event != "Manual Escalation" {
		t.Errorf("unexpected timeline event: %q", store.timeline[0].Event)
	}
}

func TestEscalationExecutor_ReminderEscalationSendsBoth(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &EscalationExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindReminderEscalation)

	outcome, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.OutcomeSuccess {
		t.Fatalf("expected success, got %s", outcome.Status)
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("expected reminder + escalation, got %d mails", len(mailer.sent))
	}
	if mailer.sent[0].To != "user@example.com" || mailer.sent[0].Template != notify.TemplateReminder {
		t.Errorf("first mail must be the reminder to the respondent")
	}
	if mailer.sent[1].To != "manager@example.com" || mailer.sent[1].Template != notify.TemplateEscalation {
		t.Errorf("second mail must be the escalation to the manager")
	}
}

func TestEscalationExecutor_NoTargetFails(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}
	executor := &EscalationExecutor{store: store, mailer: mailer, logger: discardLogger()}

	step := seed(store, domain.StepKindEscalation)
	store.containers[step.ContainerID].EscaladeEmail = ""

	outcome, err := executor.Execute(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.OutcomeError {
		t.Fatalf("expected error outcome, got %s", outcome.Status)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("no mail expected without a target")
	}
	if store.steps[step.ID].Status != domain.StepStatusFailed {
		t.Errorf("expected step failed, got %s", store.steps[step.ID].Status)
	}
	if store.steps[step.ID].Error != ErrNoRecipient.Error() {
		t.Errorf("expected %q recorded, got %q", ErrNoRecipient.Error(), store.steps[step.ID].Error)
	}
	if outcome.Message != ErrNoRecipient.Error() {
		t.Errorf("expected outcome message %q, got %q", ErrNoRecipient.Error(), outcome.Message)
	}
}

func TestRegistry_ReminderEscalationShared(t *testing.T) {
	registry := NewRegistry(newFakeStore(), &recordingMailer{}, discardLogger())

	esc, err := registry.Get(domain.StepKindEscalation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rem, err := registry.Get(domain.StepKindReminderEscalation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if esc != rem {
		t.Error("escalation and reminder-escalation should share one executor")
	}

	if _, err := registry.Get(domain.StepKind("bogus")); !errors.Is(err, ErrUnknownStepKind) {
		t.Errorf("expected ErrUnknownStepKind, got %v", err)
	}
}

func TestWorker_OutcomeHook(t *testing.T) {
	store := newFakeStore()
	mailer := &recordingMailer{}

	type observed struct {
		kind   domain.StepKind
		status domain.OutcomeStatus
	}
	var outcomes []observed

	w := New(Config{
		Store:  store,
		Mailer: mailer,
		OnOutcome: func(kind domain.StepKind, status domain.OutcomeStatus) {
			outcomes = append(outcomes, observed{kind, status})
		},
		Logger: discardLogger(),
	})

	step := seed(store, domain.StepKindReminder)
	if err := w.processStep(context.Background(), step); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Повторная обработка проигрывает claim и репортится как skipped
	redelivered, _ := store.GetStep(context.Background(), step.ID)
	redelivered.Status = domain.StepStatusPending
	store.forms[step.FormID].Status = domain.FormStatusValidated
	if err := w.processStep(context.Background(), redelivered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []observed{
		{domain.StepKindReminder, domain.OutcomeSuccess},
		{domain.StepKindReminder, domain.OutcomeSkipped},
	}
	if len(outcomes) != len(want) {
		t.Fatalf("expected %d outcomes, got %d", len(want), len(outcomes))
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcome %d: expected %+v, got %+v", i, want[i], outcomes[i])
		}
	}
}

// Полный путь: реальный календарь -> план цепочки -> выполнение шага
// по форме, отвеченной до срока.
func TestReminderFlow_AnsweredBeforeDue(t *testing.T) {
	container := &domain.FormContainer{
		ID:             uuid.New(),
		Title:          "Security questionnaire",
		UserEmail:      "user@example.com",
		MailSender:     "noreply@example.com",
		AccessToken:    "tok-e2e",
		UseWorkingDays: true,
		Country:        "FR",
	}
	form := &domain.Form{
		ID:          uuid.New(),
		ContainerID: container.ID,
		Status:      domain.FormStatusOpen,
	}
	def := &domain.WorkflowDefinition{
		ID:    uuid.New(),
		Name:  "single-reminder",
		Steps: []domain.StepDef{{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 3}},
	}

	// Четверг + 3 рабочих дня = вторник
	start := time.Date(2025, time.February, 27, 9, 0, 0, 0, time.UTC)
	steps := workflow.BuildSchedule(def, container, form, start, calendar.NewResolver())

	if len(steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(steps))
	}
	wantETA := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)
	if !steps[0].ETA.Equal(wantETA) {
		t.Fatalf("expected eta %s, got %s", wantETA, steps[0].ETA)
	}

	// Респондент отвечает до срока
	form.Status = domain.FormStatusAnswered

	store := newFakeStore()
	store.containers[container.ID] = container
	store.forms[form.ID] = form
	step := steps[0]
	store.steps[step.ID] = &step

	mailer := &recordingMailer{}
	executor := &ReminderExecutor{store: store, mailer: mailer, logger: discardLogger()}

	outcome, err := executor.Execute(context.Background(), &step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != domain.OutcomeSkipped {
		t.Errorf("expected skipped outcome, got %s", outcome.Status)
	}
	if len(mailer.sent) != 0 {
		t.Errorf("no mail expected for an answered form, got %d", len(mailer.sent))
	}
	if len(store.timeline) != 0 {
		t.Errorf("no timeline entries expected, got %d", len(store.timeline))
	}
	if store.steps[step.ID].Status != domain.StepStatusSkipped {
		t.Errorf("expected step skipped, got %s", store.steps[step.ID].Status)
	}
}
