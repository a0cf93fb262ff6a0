package domain

import (
	"time"

	"github.com/google/uuid"
)

// FormStatus — статус формы.
//
// Жизненный цикл:
//
//	open → answered | validated | canceled (терминальные)
//	answered → unsubstantial (новая форма в том же контейнере вытеснила ответ)
//
// Status — единственный источник истины для step executor'ов:
// любой статус кроме open означает "ничего не отправлять".
type FormStatus string

const (
	// FormStatusOpen — форма ожидает ответа респондента.
	FormStatusOpen FormStatus = "open"

	// FormStatusAnswered — респондент ответил на форму.
	FormStatusAnswered FormStatus = "answered"

	// FormStatusValidated — ответ проверен и подтверждён оператором.
	FormStatusValidated FormStatus = "validated"

	// FormStatusCanceled — форма отменена оператором.
	FormStatusCanceled FormStatus = "canceled"

	// FormStatusUnsubstantial — ответ вытеснен более новой формой контейнера.
	FormStatusUnsubstantial FormStatus = "unsubstantial"
)

// IsTerminal возвращает true, если статус финальный для планирования:
// напоминания и эскалации по такой форме не отправляются.
func (s FormStatus) IsTerminal() bool {
	return s != FormStatusOpen
}

// Form — одна ревизия формы внутри контейнера.
type Form struct {
	// ID — уникальный идентификатор формы.
	ID uuid.UUID `json:"id"`

	// ContainerID — ссылка на родительский FormContainer.
	ContainerID uuid.UUID `json:"container_id"`

	// Status — текущий статус формы.
	// Мутируется HTTP-слоем (ответ, валидация, отмена); executor'ы только читают.
	Status FormStatus `json:"status"`

	// WorkflowStep — тип последнего выполненного шага (для наблюдаемости).
	WorkflowStep StepKind `json:"workflow_step,omitempty"`

	// CancelComment — причина отмены (только для status=canceled).
	CancelComment string `json:"cancel_comment,omitempty"`

	// CreatedAt — время создания формы.
	CreatedAt time.Time `json:"created_at"`
}

// IsOpen возвращает true, если форма всё ещё ожидает ответа.
func (f *Form) IsOpen() bool {
	return f.Status == FormStatusOpen
}
