package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"guard-relay/shared/utils"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Host modes.
const (
	HostModeWeb     = "web"
	HostModeDesktop = "desktop"
)

type Config struct {
	Env                string        `yaml:"env" env:"ENV" env-default:"development"`
	Port               string        `yaml:"port" env:"PORT" env-default:"8085"`
	Origin             string        `yaml:"origin" env:"RELAY_ORIGIN" env-default:"http://localhost:8080"`
	HostMode           string        `yaml:"host_mode" env:"HOST_MODE" env-default:"web"`
	PushQueueName      string        `yaml:"push_queue_name" env:"PUSH_QUEUE_NAME" env-default:"push_notifications"`
	TokenDeletionQueue string        `yaml:"token_deletion_queue" env:"TOKEN_DELETION_QUEUE" env-default:"auth_token_deletions"`
	WorkerConcurrency  int           `yaml:"worker_concurrency" env:"WORKER_CONCURRENCY" env-default:"10"`
	CORSAllowedOrigins string        `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:8080"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Notification NotificationConfig `yaml:"notification"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	FCM          FCMConfig          `yaml:"fcm"`
	APNS         APNSConfig         `yaml:"apns"`
	Desktop      DesktopConfig      `yaml:"desktop"`
	Redis        RedisConfig        `yaml:"redis"`
	Database     DatabaseConfig     `yaml:"database"`
	TokenService TokenServiceConfig `yaml:"token_service"`
	Log          LogConfig          `yaml:"log"`

	// Секреты без env тегов: читаются через utils.ReadSecret
	JWTSecret          string `yaml:"-"`
	InterServiceSecret string `yaml:"-"`
}

// NotificationConfig - что показывать, если в payload нет текста, и какие ресурсы прикладывать.
type NotificationConfig struct {
	FallbackTitle string        `yaml:"fallback_title" env:"NOTIFICATION_FALLBACK_TITLE" env-default:"Guard Bildirimi"`
	FallbackBody  string        `yaml:"fallback_body" env:"NOTIFICATION_FALLBACK_BODY" env-default:"Yeni bir bildirim var."`
	Icon          string        `yaml:"icon" env:"NOTIFICATION_ICON" env-default:"/icons/Icon-192.png"`
	Badge         string        `yaml:"badge" env:"NOTIFICATION_BADGE" env-default:"/icons/Icon-192.png"`
	TargetPath    string        `yaml:"target_path" env:"NOTIFICATION_TARGET_PATH" env-default:"/"`
	TTL           time.Duration `yaml:"ttl" env:"NOTIFICATION_TTL" env-default:"24h"`
}

type RabbitMQConfig struct {
	URI        string        `yaml:"uri" env:"RABBITMQ_URI"`
	MaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"5s"`
}

type FCMConfig struct {
	CredentialsPath string `yaml:"credentials_path" env:"FCM_CREDENTIALS_PATH"` // Путь к ключу сервис-аккаунта
	ProjectID       string `yaml:"project_id" env:"FCM_PROJECT_ID"`
}

type APNSConfig struct {
	KeyID      string `yaml:"key_id" env:"APNS_KEY_ID"`
	TeamID     string `yaml:"team_id" env:"APNS_TEAM_ID"`
	KeyPath    string `yaml:"key_path" env:"APNS_KEY_PATH"`
	Topic      string `yaml:"topic" env:"APNS_TOPIC"`
	Production bool   `yaml:"production" env:"APNS_PRODUCTION" env-default:"false"`
}

// Configured reports whether every field required for token auth is set.
func (c APNSConfig) Configured() bool {
	return c.KeyID != "" && c.TeamID != "" && c.KeyPath != "" && c.Topic != ""
}

type DesktopConfig struct {
	AppName  string `yaml:"app_name" env:"DESKTOP_APP_NAME" env-default:"Guard"`
	IconPath string `yaml:"icon_path" env:"DESKTOP_ICON_PATH"` // локальный файл иконки
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"` // пусто: хранилище в памяти
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"` // пусто: журнал отключен
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"5"`
}

type TokenServiceConfig struct {
	URL string `yaml:"url" env:"TOKEN_SERVICE_URL"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING" env-default:"json"`
}

// GetAllowedOrigins splits CORSAllowedOrigins into a slice.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// LoadConfig читает .env (если есть), затем config.yml с переопределением из окружения.
// Если файла нет, конфигурация читается только из окружения.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	if configPath == "" {
		configPath = "config.yml"
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Printf("Config file '%s' not read (%v), falling back to environment", configPath, err)
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var loadErr error
	cfg.JWTSecret, loadErr = utils.ReadSecret("jwt_secret")
	if loadErr != nil {
		log.Printf("jwt_secret not loaded, authenticated endpoints are disabled: %v", loadErr)
	}
	cfg.InterServiceSecret, loadErr = utils.ReadSecret("inter_service_secret")
	if loadErr != nil {
		log.Printf("inter_service_secret not loaded, internal endpoints are disabled: %v", loadErr)
	}

	log.Printf("Configuration loaded. Origin: %s, host mode: %s, push queue: %s", cfg.Origin, cfg.HostMode, cfg.PushQueueName)
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя исправить по умолчанию.
func (c *Config) Validate() error {
	switch c.HostMode {
	case HostModeWeb, HostModeDesktop:
	default:
		return fmt.Errorf("invalid HOST_MODE %q: expected %q or %q", c.HostMode, HostModeWeb, HostModeDesktop)
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	if c.Origin == "" {
		return fmt.Errorf("RELAY_ORIGIN is required")
	}
	return nil
}
