package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/wneessen/go-mail"
)

// SMTPConfig — конфигурация SMTP клиента.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// BaseURL — внешний адрес сервиса, основа ссылок на формы.
	BaseURL string
}

// SMTPConfigFromEnv читает конфигурацию из окружения.
func SMTPConfigFromEnv() SMTPConfig {
	cfg := SMTPConfig{
		Host:     envOr("SMTP_HOST", "localhost"),
		Port:     1025,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		BaseURL:  envOr("BASE_URL", "http://localhost:8080"),
	}
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil {
			cfg.Port = port
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SMTPMailer отправляет письма через SMTP.
type SMTPMailer struct {
	client  *mail.Client
	baseURL string
	logger  *slog.Logger
}

// NewSMTPMailer создаёт SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPMailer{
		client:  client,
		baseURL: cfg.BaseURL,
		logger:  logger,
	}, nil
}

// Send рендерит шаблон и отправляет письмо.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	data := make(map[string]any, len(msg.Context)+1)
	for k, v := range msg.Context {
		data[k] = v
	}
	data["form_url"] = fmt.Sprintf("%s/forms/%s", m.baseURL, msg.AccessToken)

	subject, body, err := Render(msg.Template, data)
	if err != nil {
		return err
	}

	email := mail.NewMsg()
	if err := email.From(msg.Sender); err != nil {
		return fmt.Errorf("set sender %q: %w", msg.Sender, err)
	}
	if err := email.To(msg.To); err != nil {
		return fmt.Errorf("set recipient %q: %w", msg.To, err)
	}
	if len(msg.CC) > 0 {
		if err := email.Cc(msg.CC...); err != nil {
			return fmt.Errorf("set cc: %w", err)
		}
	}
	email.Subject(subject)
	email.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, email); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}

	m.logger.Debug("mail sent",
		"to", msg.To,
		"template", msg.Template,
	)

	return nil
}
