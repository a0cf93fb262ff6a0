// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, workflow manager, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - definition_handler.go — обработчики для /definitions
//   - container_handler.go  — обработчики для /containers и /forms
//
// API предоставляет REST endpoints оператора (definitions, containers)
// и две точки респондента, доступные по access token контейнера.
package api
