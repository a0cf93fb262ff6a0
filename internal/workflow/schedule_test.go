package workflow

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Relance/internal/domain"
)

// stubResolver фиксирует вызовы и прибавляет календарные дни.
type stubResolver struct {
	calls []resolverCall
}

type resolverCall struct {
	delayDays int
	country   string
}

func (r *stubResolver) Resolve(start time.Time, delayDays int, country string) time.Time {
	r.calls = append(r.calls, resolverCall{delayDays: delayDays, country: country})
	return start.AddDate(0, 0, delayDays)
}

func testContainer() *domain.FormContainer {
	return &domain.FormContainer{
		ID:            uuid.New(),
		Title:         "Survey",
		UserEmail:     "user@example.com",
		EscaladeEmail: "manager@example.com",
		MailSender:    "noreply@example.com",
		AccessToken:   "tok-123",
		Escalate:      true,
	}
}

func testForm(containerID uuid.UUID) *domain.Form {
	return &domain.Form{
		ID:          uuid.New(),
		ContainerID: containerID,
		Status:      domain.FormStatusOpen,
	}
}

func TestBuildSchedule_CumulativeDelays(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: "default",
		Steps: []domain.StepDef{
			{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 1},
			{ID: "r2", Kind: domain.StepKindReminder, DelayDays: 2},
			{ID: "r3", Kind: domain.StepKindReminder, DelayDays: 3},
		},
	}
	container := testContainer()
	form := testForm(container.ID)
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	steps := BuildSchedule(def, container, form, start, &stubResolver{})

	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}

	// Задержки накапливаются: 1, 1+2, 1+2+3 дней от старта
	wantDays := []int{1, 3, 6}
	for i, step := range steps {
		want := start.AddDate(0, 0, wantDays[i])
		if !step.ETA.Equal(want) {
			t.Errorf("step %d: expected eta %s, got %s", i, want, step.ETA)
		}
		if step.ChainOrder != i {
			t.Errorf("step %d: expected chain order %d, got %d", i, i, step.ChainOrder)
		}
		if step.Seq != i+1 {
			t.Errorf("step %d: expected seq %d, got %d", i, i+1, step.Seq)
		}
		if step.Status != domain.StepStatusPending {
			t.Errorf("step %d: expected pending, got %s", i, step.Status)
		}
		if step.FormID != form.ID || step.ContainerID != container.ID {
			t.Errorf("step %d: wrong form/container reference", i)
		}
		if !step.CreatedAt.Equal(start) {
			t.Errorf("step %d: expected created_at %s, got %s", i, start, step.CreatedAt)
		}
	}

	// ETA неубывает по порядку цепочки
	for i := 1; i < len(steps); i++ {
		if steps[i].ETA.Before(steps[i-1].ETA) {
			t.Errorf("eta must be non-decreasing: step %d before step %d", i, i-1)
		}
	}
}

func TestBuildSchedule_EscalationDisabled(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: "default",
		Steps: []domain.StepDef{
			{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 1},
			{ID: "re", Kind: domain.StepKindReminderEscalation, DelayDays: 2},
			{ID: "e1", Kind: domain.StepKindEscalation, DelayDays: 3},
		},
	}
	container := testContainer()
	container.Escalate = false
	form := testForm(container.ID)
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	steps := BuildSchedule(def, container, form, start, &stubResolver{})

	if len(steps) != 1 {
		t.Fatalf("expected only the reminder step, got %d steps", len(steps))
	}
	if steps[0].Kind != domain.StepKindReminder {
		t.Errorf("expected reminder, got %s", steps[0].Kind)
	}
	if steps[0].Seq != 1 {
		t.Errorf("expected seq 1, got %d", steps[0].Seq)
	}
}

func TestBuildSchedule_EscalationEnabled(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: "default",
		Steps: []domain.StepDef{
			{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 1},
			{ID: "re", Kind: domain.StepKindReminderEscalation, DelayDays: 2},
			{ID: "e1", Kind: domain.StepKindEscalation, DelayDays: 3},
		},
	}
	container := testContainer()
	form := testForm(container.ID)
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	steps := BuildSchedule(def, container, form, start, &stubResolver{})

	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}

	// Seq нумерует только напоминания респонденту:
	// reminder=1, reminder-escalation=2, escalation не двигает счётчик
	if steps[0].Seq != 1 || steps[1].Seq != 2 || steps[2].Seq != 2 {
		t.Errorf("unexpected seq numbers: %d, %d, %d", steps[0].Seq, steps[1].Seq, steps[2].Seq)
	}

	// Пропущенный при Escalate=false шаг здесь присутствует — ETA по
	// кумулятивной задержке, включая задержки всех шагов до него
	want := start.AddDate(0, 0, 6)
	if !steps[2].ETA.Equal(want) {
		t.Errorf("escalation eta: expected %s, got %s", want, steps[2].ETA)
	}
}

func TestBuildSchedule_WorkingDaysUsesResolver(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: "default",
		Steps: []domain.StepDef{
			{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 2},
			{ID: "r2", Kind: domain.StepKindReminder, DelayDays: 3},
		},
	}
	container := testContainer()
	container.UseWorkingDays = true
	container.Country = "FR"
	form := testForm(container.ID)
	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	resolver := &stubResolver{}
	steps := BuildSchedule(def, container, form, start, resolver)

	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if len(resolver.calls) != 2 {
		t.Fatalf("expected 2 resolver calls, got %d", len(resolver.calls))
	}

	// Каждый вызов получает кумулятивную задержку от старта
	if resolver.calls[0].delayDays != 2 || resolver.calls[1].delayDays != 5 {
		t.Errorf("expected cumulative delays 2 and 5, got %d and %d",
			resolver.calls[0].delayDays, resolver.calls[1].delayDays)
	}
	for i, call := range resolver.calls {
		if call.country != "FR" {
			t.Errorf("call %d: expected country FR, got %q", i, call.country)
		}
	}
}

func TestBuildSchedule_CalendarDaysSkipResolver(t *testing.T) {
	def := &domain.WorkflowDefinition{
		ID:   uuid.New(),
		Name: "default",
		Steps: []domain.StepDef{
			{ID: "r1", Kind: domain.StepKindReminder, DelayDays: 3},
		},
	}
	container := testContainer()
	container.UseWorkingDays = false
	form := testForm(container.ID)
	start := time.Date(2025, time.February, 27, 9, 0, 0, 0, time.UTC)

	resolver := &stubResolver{}
	steps := BuildSchedule(def, container, form, start, resolver)

	if len(resolver.calls) != 0 {
		t.Errorf("resolver must not be called for calendar-day containers")
	}
	// 2025-02-27 + 3 календарных дня = 2025-03-02 (воскресенье, не пропускается)
	want := time.Date(2025, time.March, 2, 9, 0, 0, 0, time.UTC)
	if !steps[0].ETA.Equal(want) {
		t.Errorf("expected eta %s, got %s", want, steps[0].ETA)
	}
}

func TestBuildSchedule_EmptyDefinition(t *testing.T) {
	def := &domain.WorkflowDefinition{ID: uuid.New(), Name: "empty"}
	container := testContainer()
	form := testForm(container.ID)

	steps := BuildSchedule(def, container, form, time.Now(), &stubResolver{})
	if len(steps) != 0 {
		t.Errorf("expected no steps for empty definition, got %d", len(steps))
	}
}
