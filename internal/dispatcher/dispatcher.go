package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/mq"
)

// Default configuration values.
const (
	defaultTickInterval    = time.Second
	defaultBatchSize       = 100
	defaultRedispatchAfter = 5 * time.Minute
	defaultStaleAfter      = 10 * time.Minute
	defaultOverdueGrace    = time.Minute
	defaultSweepSchedule   = "*/5 * * * *"
)

// cronParser — парсер cron-выражений для расписания sweep.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Storage — хранилище, необходимое диспетчеру.
// Реализация: repo.WorkflowStore.
type Storage interface {
	ListDue(ctx context.Context, now time.Time, redispatchAfter time.Duration, limit int) ([]domain.ScheduledStep, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, at time.Time) error
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
	CountOverduePending(ctx context.Context, now time.Time, grace time.Duration) (int, error)
}

// Publisher публикует события о созревших шагах.
// Реализация: mq.Publisher.
type Publisher interface {
	PublishStepDue(ctx context.Context, payload mq.StepDuePayload) error
}

// Dispatcher переносит созревшие шаги из реестра в очередь.
//
// Каждый tick выбирает pending-шаги с истекшим eta и публикует
// step.due. Публикация фиксируется в dispatched_at: потерянное
// сообщение переиздаётся, когда отметка устареет. Sweep периодически
// возвращает зависшие processing-шаги и считает просроченный backlog.
//
// Запускается в единственном экземпляре: leader election через
// pg_try_advisory_lock делает main процесса.
type Dispatcher struct {
	store     Storage
	publisher Publisher
	logger    *slog.Logger

	tickInterval    time.Duration
	batchSize       int
	redispatchAfter time.Duration
	staleAfter      time.Duration
	overdueGrace    time.Duration
	sweepSchedule   cron.Schedule
}

// Config — конфигурация Dispatcher.
type Config struct {
	Store     Storage
	Publisher Publisher
	Logger    *slog.Logger

	// TickInterval — период основного цикла (default: 1s).
	TickInterval time.Duration

	// BatchSize — количество шагов за один tick (default: 100).
	BatchSize int

	// RedispatchAfter — через сколько после публикации шаг считается
	// потерянным и публикуется повторно (default: 5m).
	RedispatchAfter time.Duration

	// StaleAfter — через сколько processing-шаг считается зависшим
	// (default: 10m).
	StaleAfter time.Duration

	// OverdueGrace — допустимое отставание pending-шага от eta до
	// попадания в метрику backlog (default: 1m).
	OverdueGrace time.Duration

	// SweepSchedule — cron-выражение расписания sweep
	// (default: "*/5 * * * *").
	SweepSchedule string
}

// New создаёт новый Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	redispatchAfter := cfg.RedispatchAfter
	if redispatchAfter <= 0 {
		redispatchAfter = defaultRedispatchAfter
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	overdueGrace := cfg.OverdueGrace
	if overdueGrace <= 0 {
		overdueGrace = defaultOverdueGrace
	}

	expr := cfg.SweepSchedule
	if expr == "" {
		expr = defaultSweepSchedule
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", expr, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		store:           cfg.Store,
		publisher:       cfg.Publisher,
		logger:          logger,
		tickInterval:    tickInterval,
		batchSize:       batchSize,
		redispatchAfter: redispatchAfter,
		staleAfter:      staleAfter,
		overdueGrace:    overdueGrace,
		sweepSchedule:   schedule,
	}, nil
}

// Run — основной цикл: tick каждую секунду, sweep по cron-расписанию.
// Блокирует до отмены ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started",
		"tick_interval", d.tickInterval,
		"batch_size", d.batchSize,
	)

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	sweepTimer := time.NewTimer(time.Until(d.sweepSchedule.Next(time.Now())))
	defer sweepTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return ctx.Err()

		case <-ticker.C:
			if err := d.Tick(ctx); err != nil {
				d.logger.Error("dispatcher tick failed", "error", err)
			}

		case <-sweepTimer.C:
			if err := d.Sweep(ctx); err != nil {
				d.logger.Error("dispatcher sweep failed", "error", err)
			}
			sweepTimer.Reset(time.Until(d.sweepSchedule.Next(time.Now())))
		}
	}
}

// Tick выполняет один цикл диспетчеризации.
//
// Ошибка публикации одного шага не блокирует остальные: шаг остаётся
// pending без отметки и будет подхвачен следующим tick.
func (d *Dispatcher) Tick(ctx context.Context) error {
	now := time.Now()

	steps, err := d.store.ListDue(ctx, now, d.redispatchAfter, d.batchSize)
	if err != nil {
		return fmt.Errorf("list due steps: %w", err)
	}

	if len(steps) == 0 {
		return nil
	}

	var published int
	for i := range steps {
		step := &steps[i]

		payload := mq.StepDuePayload{
			StepID:      step.ID,
			FormID:      step.FormID,
			ContainerID: step.ContainerID,
			Kind:        string(step.Kind),
		}

		if err := d.publisher.PublishStepDue(ctx, payload); err != nil {
			d.logger.Error("failed to publish step.due",
				"step_id", step.ID,
				"error", err,
			)
			continue
		}

		if err := d.store.MarkDispatched(ctx, step.ID, now); err != nil {
			// Сообщение уже в очереди; без отметки шаг будет издан
			// повторно — воркер дедуплицирует через claim
			d.logger.Warn("failed to mark step dispatched",
				"step_id", step.ID,
				"error", err,
			)
		}

		published++
	}

	d.logger.Info("dispatcher tick completed",
		"due", len(steps),
		"published", published,
	)

	return nil
}

// Sweep возвращает зависшие processing-шаги в pending и логирует
// размер просроченного backlog.
func (d *Dispatcher) Sweep(ctx context.Context) error {
	now := time.Now()

	requeued, err := d.store.RequeueStale(ctx, now.Add(-d.staleAfter))
	if err != nil {
		return fmt.Errorf("requeue stale steps: %w", err)
	}
	if requeued > 0 {
		d.logger.Warn("requeued stale processing steps", "count", requeued)
	}

	overdue, err := d.store.CountOverduePending(ctx, now, d.overdueGrace)
	if err != nil {
		return fmt.Errorf("count overdue steps: %w", err)
	}
	if overdue > 0 {
		d.logger.Warn("overdue pending steps detected", "count", overdue)
	} else {
		d.logger.Debug("sweep completed, no overdue steps")
	}

	return nil
}
