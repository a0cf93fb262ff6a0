package domain

// OutcomeStatus — статус результата выполнения шага.
type OutcomeStatus string

const (
	// OutcomeSuccess — уведомление отправлено и зафиксировано.
	OutcomeSuccess OutcomeStatus = "success"

	// OutcomeSkipped — шаг не выполнялся: форма в терминальном
	// статусе, данные удалены или claim проигран (повторная доставка).
	OutcomeSkipped OutcomeStatus = "skipped"

	// OutcomeError — уведомление отправлено, но фиксация результата
	// не удалась. Принятый компромисс at-least-once: письмо не
	// отзывается.
	OutcomeError OutcomeStatus = "error"
)

// StepOutcome — структурированный результат тела шага.
//
// Тела шагов не бросают ошибок через границу очереди для ожидаемых
// ситуаций: все исходы выражаются этим типом, и слой интеграции с
// очередью сам решает, подтверждать ли сообщение.
type StepOutcome struct {
	// Status — итог выполнения.
	Status OutcomeStatus `json:"status"`

	// StepID — ID шага из определения.
	StepID string `json:"step_id,omitempty"`

	// Kind — тип шага.
	Kind StepKind `json:"kind,omitempty"`

	// Message — человекочитаемое пояснение (причина skip, текст ошибки).
	Message string `json:"message,omitempty"`
}

// SkippedOutcome возвращает исход "пропущено" с причиной.
func SkippedOutcome(step *ScheduledStep, reason string) *StepOutcome {
	return &StepOutcome{
		Status:  OutcomeSkipped,
		StepID:  step.StepID,
		Kind:    step.Kind,
		Message: reason,
	}
}

// SuccessOutcome возвращает успешный исход.
func SuccessOutcome(step *ScheduledStep) *StepOutcome {
	return &StepOutcome{
		Status: OutcomeSuccess,
		StepID: step.StepID,
		Kind:   step.Kind,
	}
}

// ErrorOutcome возвращает исход "ошибка фиксации" с текстом.
func ErrorOutcome(step *ScheduledStep, msg string) *StepOutcome {
	return &StepOutcome{
		Status:  OutcomeError,
		StepID:  step.StepID,
		Kind:    step.Kind,
		Message: msg,
	}
}
