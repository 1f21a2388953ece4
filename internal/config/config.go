package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	TaskAPI        TaskAPIConfig        `mapstructure:"task_api"`
	Webhook        WebhookConfig        `mapstructure:"webhook"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Startup        StartupConfig        `mapstructure:"startup"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TaskAPIConfig describes how to reach the task-management API and
// which credentials to use. AdminEmail/AdminPassword authenticate the
// webhook registration handshake; AgentAPIKey authenticates the worker
// when it reports processing outcomes back.
type TaskAPIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Prefix        string        `mapstructure:"prefix"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password"`
	AgentAPIKey   string        `mapstructure:"agent_api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type WebhookConfig struct {
	CallbackURL string   `mapstructure:"callback_url"`
	Events      []string `mapstructure:"events"`
}

type BrokerConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	BindingKey string `mapstructure:"binding_key"`
	Prefetch   int    `mapstructure:"prefetch"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StartupConfig bounds the wait-for-api and signup retry loops.
// The interval is fixed, not exponential: the loops poll collaborators
// that are expected to come up shortly after this process.
type StartupConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
