// Package notify отвечает за email-уведомления.
//
// Тексты писем собираются из встроенных шаблонов (new_form, reminder,
// escalation); ссылка на форму строится из BASE_URL и access token
// контейнера. Отправка идёт через SMTP (github.com/wneessen/go-mail).
//
// Mailer — единственная точка контакта движка с почтой; воркеры и
// WorkflowManager зависят от интерфейса, тесты подставляют запись
// вместо отправки.
package notify
