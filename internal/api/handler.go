package api

import (
	"log/slog"

	"github.com/shaiso/Relance/internal/repo"
	"github.com/shaiso/Relance/internal/workflow"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	containerRepo  *repo.ContainerRepo
	formRepo       *repo.FormRepo
	definitionRepo *repo.DefinitionRepo
	stepRepo       *repo.StepRepo
	timelineRepo   *repo.TimelineRepo
	manager        *workflow.Manager
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	ContainerRepo  *repo.ContainerRepo
	FormRepo       *repo.FormRepo
	DefinitionRepo *repo.DefinitionRepo
	StepRepo       *repo.StepRepo
	TimelineRepo   *repo.TimelineRepo
	Manager        *workflow.Manager
	Logger         *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		containerRepo:  cfg.ContainerRepo,
		formRepo:       cfg.FormRepo,
		definitionRepo: cfg.DefinitionRepo,
		stepRepo:       cfg.StepRepo,
		timelineRepo:   cfg.TimelineRepo,
		manager:        cfg.Manager,
		logger:         cfg.Logger,
	}
}
