// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - step.due — запланированный шаг workflow созрел для выполнения
//
// Exchanges:
//   - relance.steps — созревшие шаги (consumer: Worker)
//   - relance.dlq   — dead letter queue для некорректных сообщений
//
// Очередь и сообщения не являются источником истины: состояние шагов
// живёт в PostgreSQL, payload несёт только идентификаторы. Потерянное
// сообщение переиздаётся диспетчером по полю dispatched_at.
package mq
