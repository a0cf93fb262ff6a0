// Package telemetry предоставляет настройку structured logging (slog)
// и вспомогательные функции для обогащения логгера идентификаторами
// контейнера, формы и шага.
package telemetry
