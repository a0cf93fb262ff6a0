// Relance Worker — выполняет запланированные шаги workflow.
//
// Worker:
//   - Получает due-шаги из RabbitMQ (плюс polling fallback)
//   - Атомарно захватывает шаг в базе
//   - Отправляет напоминание или эскалацию по SMTP
//   - Записывает результат в ledger и timeline
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relance/internal/domain"
	"github.com/shaiso/Relance/internal/mq"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
	"github.com/shaiso/Relance/internal/telemetry"
	"github.com/shaiso/Relance/internal/worker"
)

var (
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relance_worker_steps_total",
		Help: "Workflow steps executed by relance_worker, by kind and outcome",
	}, []string{"kind", "outcome"})

	mailsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relance_worker_mails_sent_total",
		Help: "Notification emails successfully sent by relance_worker",
	})
)

// meteredMailer считает успешно отправленные письма.
type meteredMailer struct {
	inner notify.Mailer
}

func (m meteredMailer) Send(ctx context.Context, msg notify.Message) error {
	if err := m.inner.Send(ctx, msg); err != nil {
		return err
	}
	mailsSentTotal.Inc()
	return nil
}

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relance-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := repo.NewWorkflowStore(pool)

	// SMTP mailer
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfigFromEnv(), logger)
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		os.Exit(1)
	}

	// RabbitMQ
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	// Создаём worker
	w := worker.New(worker.Config{
		Store:  store,
		Mailer: meteredMailer{inner: mailer},
		Conn:   mqConn,
		OnOutcome: func(kind domain.StepKind, status domain.OutcomeStatus) {
			stepsTotal.WithLabelValues(string(kind), string(status)).Inc()
		},
		Logger: logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("relance-worker stopped")
}
