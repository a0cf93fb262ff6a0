package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownStepKind — нет executor'а для данного типа шага.
	ErrUnknownStepKind = errors.New("unknown step kind")

	// ErrNoRecipient — нет адреса получателя для письма.
	ErrNoRecipient = errors.New("no recipient for notification")
)
