package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimelineEntry — запись аудиторского следа контейнера.
//
// Append-only: записи никогда не изменяются и не удаляются.
// Пишется HTTP-слоем (создание, ответ, валидация, отмена) и
// step executor'ами (напоминание отправлено, эскалация отправлена).
type TimelineEntry struct {
	// ID — автоинкрементный идентификатор записи.
	ID int64 `json:"id"`

	// ContainerID — ссылка на контейнер.
	ContainerID uuid.UUID `json:"container_id"`

	// FormID — ссылка на форму, к которой относится событие.
	FormID uuid.UUID `json:"form_id"`

	// Event — короткое имя события ("Reminder 2 sent", "Automatic Escalation").
	Event string `json:"event"`

	// Details — развёрнутое описание.
	Details string `json:"details,omitempty"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}
