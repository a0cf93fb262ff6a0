// Package cli реализует инструмент командной строки Relance.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Relance API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется операторами для управления определениями workflow
// и контейнерами форм.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Relance API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	containers, err := client.ListContainers(cli.ListContainersOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: relance container list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - definition: list, create, show, delete
//   - container: list, create, show, timeline, steps, validate,
//     cancel, escalate, revise
//
// Каждая группа создаётся через фабричную функцию (NewContainerCmd и
// т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
