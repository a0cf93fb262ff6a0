package notify

import "context"

// TemplateKey — ключ шаблона письма.
type TemplateKey string

// Ключи шаблонов.
const (
	TemplateNewForm    TemplateKey = "new_form"
	TemplateReminder   TemplateKey = "reminder"
	TemplateEscalation TemplateKey = "escalation"
)

// Message — письмо для отправки.
type Message struct {
	// Sender — адрес отправителя (MailSender контейнера).
	Sender string

	// To — основной получатель.
	To string

	// CC — копии (cc_emails контейнера).
	CC []string

	// Template — ключ шаблона письма.
	Template TemplateKey

	// AccessToken — токен доступа к форме, попадает в ссылку.
	AccessToken string

	// Context — переменные шаблона (title, seq и т.п.).
	Context map[string]any
}

// Mailer отправляет письма. Реализация: SMTPMailer.
// Возврат ошибки означает сбой доставки: шаг будет повторён.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
