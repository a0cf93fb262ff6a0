// Package dispatcher переносит созревшие шаги workflow в очередь.
//
// Dispatcher периодически (раз в секунду) выбирает pending-шаги с
// истекшим eta и публикует события step.due в RabbitMQ. Реестр шагов
// в PostgreSQL остаётся источником истины: публикация отмечается в
// dispatched_at, и шаг без свежей отметки переиздаётся — так потеря
// сообщения брокером не теряет напоминание.
//
// Sweep по cron-расписанию возвращает зависшие processing-шаги
// (упавший воркер) обратно в pending и считает просроченный backlog.
//
// Leader Election:
//
// Dispatcher не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock: Run() вызывается
// только лидером.
package dispatcher
