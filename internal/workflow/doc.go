// Package workflow планирует цепочки напоминаний для форм.
//
// Manager.StartWorkflow отправляет первичное уведомление и
// разворачивает определение workflow в цепочку ScheduledStep с
// кумулятивными задержками (schedule.go). Даты считаются либо в
// календарных днях, либо в рабочих — через calendar.Resolver, в
// зависимости от настройки контейнера.
//
// Дальнейшая жизнь цепочки пакету не принадлежит: созревшие шаги
// публикует dispatcher, выполняет worker.
package workflow
