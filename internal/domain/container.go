package domain

import (
	"time"

	"github.com/google/uuid"
)

// FormContainer — одно обращение к респонденту.
//
// Контейнер владеет одной или несколькими ревизиями формы (Form)
// и определяет, кому и как отправлять уведомления.
// Создаётся HTTP-слоем один раз; validated/archived_at мутируются
// эндпоинтами валидации/отмены, остальные поля неизменны на время
// жизни workflow.
type FormContainer struct {
	// ID — уникальный идентификатор контейнера.
	ID uuid.UUID `json:"id"`

	// Title — заголовок обращения (используется в текстах писем).
	Title string `json:"title"`

	// Description — описание назначения формы.
	Description string `json:"description,omitempty"`

	// UserEmail — адрес респондента. Получатель начального уведомления
	// и напоминаний.
	UserEmail string `json:"user_email"`

	// EscaladeEmail — адрес менеджера для эскалации.
	EscaladeEmail string `json:"escalade_email,omitempty"`

	// CCEmails — адреса в копии каждого письма (порядок сохраняется).
	CCEmails []string `json:"cc_emails,omitempty"`

	// AccessToken — непрозрачный токен доступа, вставляется в ссылку
	// на форму в каждом письме.
	AccessToken string `json:"access_token"`

	// MailSender — адрес отправителя писем для этого контейнера.
	MailSender string `json:"mail_sender"`

	// Escalate — включена ли эскалация. Если false, шаги типа
	// escalation/reminder-escalation не планируются.
	Escalate bool `json:"escalate"`

	// UseWorkingDays — считать ли задержки шагов в рабочих днях
	// (пропуская выходные и праздники страны Country).
	UseWorkingDays bool `json:"use_working_days"`

	// Country — код страны для календаря праздников (например "FR").
	// Пустой или неизвестный код деградирует до календаря по умолчанию.
	Country string `json:"country,omitempty"`

	// Validated — контейнер проверен и закрыт оператором.
	Validated bool `json:"validated"`

	// ArchivedAt — время архивации (отмены) контейнера.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// DefinitionID — ссылка на WorkflowDefinition, управляющий шагами.
	// nil — валидный вырожденный случай: форма без напоминаний.
	DefinitionID *uuid.UUID `json:"definition_id,omitempty"`

	// CreatedAt — время создания контейнера.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsArchived возвращает true, если контейнер отменён.
func (c *FormContainer) IsArchived() bool {
	return c.ArchivedAt != nil
}
