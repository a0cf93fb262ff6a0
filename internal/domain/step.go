package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus — статус запланированного шага в устойчивом реестре.
//
// Жизненный цикл:
//
//	pending → processing → sent
//	                     ↘ failed (persistence после отправки)
//	pending → skipped (форма в терминальном статусе / подавление цепочки)
//	processing → pending (возврат после сбоя доставки или зависший claim)
type StepStatus string

const (
	// StepStatusPending — шаг ожидает своего eta.
	StepStatusPending StepStatus = "pending"

	// StepStatusProcessing — шаг захвачен воркером (claim выигран).
	StepStatusProcessing StepStatus = "processing"

	// StepStatusSent — уведомление отправлено, timeline записан.
	StepStatusSent StepStatus = "sent"

	// StepStatusSkipped — шаг пропущен (форма уже не open, данные
	// удалены, либо подавлен более ранним шагом цепочки).
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusFailed — отправка произошла, но фиксация результата
	// не удалась. Письмо не отзывается, шаг не повторяется.
	StepStatusFailed StepStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSent, StepStatusSkipped, StepStatusFailed:
		return true
	default:
		return false
	}
}

// ScheduledStep — строка устойчивого реестра запланированных шагов.
//
// Реестр — источник истины планирования: очередь лишь транспортирует
// событие "шаг созрел", а решение "выполнять или пропустить" всегда
// принимается по живому состоянию формы и условному захвату строки.
type ScheduledStep struct {
	// ID — уникальный идентификатор запланированного шага.
	ID uuid.UUID `json:"id"`

	// ContainerID — ссылка на контейнер.
	ContainerID uuid.UUID `json:"container_id"`

	// FormID — ссылка на форму, за которой следит шаг.
	FormID uuid.UUID `json:"form_id"`

	// StepID — ID шага из WorkflowDefinition.
	StepID string `json:"step_id"`

	// Kind — тип шага.
	Kind StepKind `json:"kind"`

	// ChainOrder — позиция в цепочке контейнера (0, 1, 2, ...).
	// Порядок подачи, не зависимость исполнения: каждый шаг
	// самодостаточен и срабатывает по собственному eta.
	ChainOrder int `json:"chain_order"`

	// Seq — порядковый номер среди шагов того же типа
	// (для события "Reminder N sent").
	Seq int `json:"seq"`

	// ETA — самое раннее время выполнения. Неубывает по ChainOrder
	// в пределах одного контейнера.
	ETA time.Time `json:"eta"`

	// Status — текущий статус шага.
	Status StepStatus `json:"status"`

	// Attempt — количество захватов шага воркерами.
	Attempt int `json:"attempt"`

	// Manual — шаг создан ручным триггером эскалации (админ-действие),
	// а не расписанием определения.
	Manual bool `json:"manual,omitempty"`

	// ManualEmail — явный получатель ручной эскалации.
	// Пустое значение — использовать EscaladeEmail контейнера.
	ManualEmail string `json:"manual_email,omitempty"`

	// Error — текст последней ошибки выполнения.
	Error string `json:"error,omitempty"`

	// DispatchedAt — когда диспетчер последний раз публиковал шаг
	// в очередь. nil — ещё не публиковался.
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`

	// ExecutedAt — когда шаг завершился (sent/skipped/failed).
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`
}

// StepClaim — результат условного захвата шага воркером.
//
// Захват выполняется одной транзакцией: блокировка строки формы,
// проверка статуса, условный перевод шага pending → processing.
// Это закрывает гонку "статус сменился между чтением и отправкой"
// и дедуплицирует повторные доставки из очереди.
type StepClaim struct {
	// Claimed — шаг захвачен этим воркером, можно действовать.
	Claimed bool

	// FormMissing — форма или контейнер исчезли из БД.
	FormMissing bool

	// FormStatus — статус формы на момент захвата (под блокировкой).
	FormStatus FormStatus

	// Suppressed — сколько оставшихся pending-шагов цепочки было
	// подавлено из-за терминального статуса формы.
	Suppressed int64
}
