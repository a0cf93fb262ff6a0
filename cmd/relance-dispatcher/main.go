// Relance Dispatcher — публикует due-шаги в RabbitMQ.
//
// Dispatcher:
//   - Каждую секунду выбирает due-шаги из ledger и публикует их
//   - Периодическим sweep возвращает зависшие processing-шаги в pending
//   - Работает в единственном экземпляре: лидер выбирается через
//     pg_try_advisory_lock, остальные реплики ждут освобождения
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Relance/internal/dispatcher"
	"github.com/shaiso/Relance/internal/mq"
	"github.com/shaiso/Relance/internal/repo"
	"github.com/shaiso/Relance/internal/telemetry"
)

const dispatcherLockKey int64 = 815101

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relance-dispatcher")

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

	// RabbitMQ
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	d, err := dispatcher.New(dispatcher.Config{
		Store:     store,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("DISPATCHER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Элекция лидера: ждём advisory lock, затем запускаем цикл.
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		defer func() {
			_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", dispatcherLockKey)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
			}

			var leader bool
			if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", dispatcherLockKey).Scan(&leader); err != nil {
				if ctx.Err() == nil {
					logger.Error("advisory lock error", "error", err)
				}
				continue
			}
			if !leader {
				// не лидер — ждём следующего тика
				continue
			}

			logger.Info("acquired leadership")
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("dispatcher error", "error", err)
				cancel()
			}
			return
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("relance-dispatcher stopped")
}
