package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateTaskAPI(cfg.TaskAPI); err != nil {
		errors = append(errors, err)
	}

	if err := validateWebhook(cfg.Webhook); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateRedis(cfg.Redis); err != nil {
		errors = append(errors, err)
	}

	if err := validateStartup(cfg.Startup); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateTaskAPI(cfg TaskAPIConfig) error {
	if cfg.BaseURL == "" {
		return &ValidationError{
			Field:   "task_api.base_url",
			Message: "task API base URL is required",
		}
	}

	if cfg.Prefix != "" && !strings.HasPrefix(cfg.Prefix, "/") {
		return &ValidationError{
			Field:   "task_api.prefix",
			Message: fmt.Sprintf("prefix must start with '/', got %q", cfg.Prefix),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "task_api.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validateWebhook(cfg WebhookConfig) error {
	if cfg.CallbackURL == "" {
		return &ValidationError{
			Field:   "webhook.callback_url",
			Message: "callback URL is required",
		}
	}

	if len(cfg.Events) == 0 {
		return &ValidationError{
			Field:   "webhook.events",
			Message: "at least one subscribed event is required",
		}
	}

	for i, event := range cfg.Events {
		if event == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("webhook.events[%d]", i),
				Message: "event kind cannot be empty",
			}
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "broker.url",
			Message: "broker URL is required",
		}
	}

	if !strings.HasPrefix(cfg.URL, "amqp://") && !strings.HasPrefix(cfg.URL, "amqps://") {
		return &ValidationError{
			Field:   "broker.url",
			Message: fmt.Sprintf("broker URL must use amqp:// or amqps:// scheme, got %q", cfg.URL),
		}
	}

	if cfg.Exchange == "" {
		return &ValidationError{
			Field:   "broker.exchange",
			Message: "exchange name is required",
		}
	}

	if cfg.Queue == "" {
		return &ValidationError{
			Field:   "broker.queue",
			Message: "queue name is required",
		}
	}

	if cfg.BindingKey == "" {
		return &ValidationError{
			Field:   "broker.binding_key",
			Message: "binding key is required",
		}
	}

	if cfg.Prefetch < 1 {
		return &ValidationError{
			Field:   "broker.prefetch",
			Message: fmt.Sprintf("prefetch must be at least 1, got %d", cfg.Prefetch),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateStartup(cfg StartupConfig) error {
	if cfg.MaxRetries < 1 {
		return &ValidationError{
			Field:   "startup.max_retries",
			Message: "max retries must be at least 1",
		}
	}

	if cfg.RetryInterval <= 0 {
		return &ValidationError{
			Field:   "startup.retry_interval",
			Message: "retry interval must be positive",
		}
	}

	return nil
}
