package workflow

import "errors"

// Ошибки workflow.
var (
	// ErrFormNotOpen — операция требует формы в статусе open.
	ErrFormNotOpen = errors.New("form is not open")

	// ErrContainerArchived — контейнер архивирован, workflow не запускается.
	ErrContainerArchived = errors.New("container is archived")

	// ErrNoEscalationTarget — нет адреса для эскалации.
	ErrNoEscalationTarget = errors.New("no escalation target email")
)
