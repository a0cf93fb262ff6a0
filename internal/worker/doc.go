// Package worker выполняет созревшие шаги workflow.
//
// Структура:
//   - worker.go               — жизненный цикл (consumer + polling fallback)
//   - handlers.go             — обработка событий step.due
//   - executor.go             — интерфейс Executor, Registry, общий протокол захвата
//   - reminder_executor.go    — напоминания респонденту
//   - escalation_executor.go  — эскалации менеджеру
//
// Каждый шаг самодостаточен: executor захватывает строку шага условным
// UPDATE под блокировкой формы, перечитывает живое состояние и только
// потом отправляет письмо. Терминальный статус формы пропускает шаг и
// подавляет остаток цепочки; проигранный захват — повторная доставка,
// молча подтверждается.
package worker
