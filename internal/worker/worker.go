package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/mq"
	"github.com/shaiso/Relance/internal/notify"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5

	// pollRedispatchAfter — насколько старой должна быть публикация
	// шага, чтобы polling подхватил его повторно.
	pollRedispatchAfter = 5 * time.Minute
)

// Worker выполняет созревшие шаги workflow.
//
// Worker — stateless компонент, который:
//   - получает события step.due из очереди RabbitMQ (event-driven)
//   - периодически перечитывает созревшие pending-шаги из БД
//     (polling fallback на случай потерянных сообщений)
//   - выполняет шаг через executor по типу (reminder, escalation)
//
// Воркеры масштабируются горизонтально: условный захват шага в БД
// гарантирует, что каждый шаг выполнится не более одного раза.
type Worker struct {
	store    Storage
	registry *Registry
	conn     *mq.Connection
	consumer *mq.Consumer

	pollInterval time.Duration
	batchSize    int

	onOutcome func(kind domain.StepKind, status domain.OutcomeStatus)

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Store  Storage
	Mailer notify.Mailer
	Conn   *mq.Connection

	// Registry — опционально; если nil, собирается NewRegistry().
	Registry *Registry

	// PollInterval — интервал polling fallback (default: 30s).
	PollInterval time.Duration

	// BatchSize — количество шагов за один poll (default: 50).
	BatchSize int

	// OnOutcome — опциональный хук для метрик: вызывается после
	// каждого выполненного шага с его типом и исходом.
	OnOutcome func(kind domain.StepKind, status domain.OutcomeStatus)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(cfg.Store, cfg.Mailer, logger)
	}

	return &Worker{
		store:        cfg.Store,
		registry:     registry,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		onOutcome:    cfg.OnOutcome,
		logger:       logger,
	}
}

// Start запускает Worker: consumer очереди steps.due и polling fallback.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	// Без RabbitMQ работаем только через polling.
	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueStepsDue),
			Handler:  w.handleStepDue,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("step consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и дожидается завершения горутин.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// pollLoop — цикл polling fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте: подхватываем шаги, созревшие пока
	// воркеры были выключены
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	steps, err := w.store.ListDue(ctx, time.Now(), pollRedispatchAfter, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list due steps", "error", err)
		return
	}

	if len(steps) == 0 {
		return
	}

	w.logger.Debug("poll found due steps", "count", len(steps))

	for i := range steps {
		step := &steps[i]

		if err := w.processStep(ctx, step); err != nil {
			w.logger.Error("failed to process step from poll",
				"step_id", step.ID,
				"error", err,
			)
		}
	}
}
