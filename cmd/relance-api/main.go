package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/Relance/internal/api"
	"github.com/shaiso/Relance/internal/calendar"
	"github.com/shaiso/Relance/internal/notify"
	"github.com/shaiso/Relance/internal/repo"
	"github.com/shaiso/Relance/internal/telemetry"
	"github.com/shaiso/Relance/internal/workflow"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relance_api_http_requests_total",
		Help: "Total HTTP requests handled by relance_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relance-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	containerRepo := repo.NewContainerRepo(pool)
	formRepo := repo.NewFormRepo(pool)
	definitionRepo := repo.NewDefinitionRepo(pool)
	stepRepo := repo.NewStepRepo(pool)
	timelineRepo := repo.NewTimelineRepo(pool)
	store := repo.NewWorkflowStore(pool)

	// SMTP mailer
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfigFromEnv(), logger)
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		os.Exit(1)
	}

	// Workflow manager: планирование цепочек + первичные уведомления
	manager := workflow.NewManager(workflow.Config{
		Store:    store,
		Mailer:   mailer,
		Resolver: calendar.NewResolver(),
		Logger:   logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		ContainerRepo:  containerRepo,
		FormRepo:       formRepo,
		DefinitionRepo: definitionRepo,
		StepRepo:       stepRepo,
		TimelineRepo:   timelineRepo,
		Manager:        manager,
		Logger:         logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
