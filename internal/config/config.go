// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/storefront-bot/internal/models"
)

// Поддерживаемые значения storage.backend.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"local"`
	RootPrincipalID int64  `yaml:"root_principal_id" env:"ROOT_PRINCIPAL_ID" env-required:"true"`
	Storage         `yaml:"storage"`
	RedisConnection `yaml:"redis_connection"`
	RabbitMQ        `yaml:"rabbitmq"`
	HTTPServer      `yaml:"http_server"`
	RateLimit       `yaml:"rate_limit"`
	Digest          `yaml:"digest"`
	Catalog         `yaml:"catalog"`
}

// Storage структура для выбора хранилища
type Storage struct {
	Backend        string        `yaml:"backend" env:"STORAGE_BACKEND" env-default:"redis"`
	PostgresDSN    string        `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	StorageTimeout time.Duration `yaml:"timeout" env:"STORAGE_TIMEOUT" env-default:"5s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT" env-default:"3s"`
	KeyPrefix    string        `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"storefront"`
}

// RabbitMQ структура для настройки брокера. Пустой URL отключает брокер.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"3s"`
	EventsQueue        string        `yaml:"events_queue" env:"RABBITMQ_EVENTS_QUEUE" env-default:"storefront.events"`
	Exchange           string        `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"notifications"`
	OutboundQueue      string        `yaml:"outbound_queue" env:"RABBITMQ_OUTBOUND_QUEUE" env-default:"notifications.outbound"`
	OutboundRoutingKey string        `yaml:"outbound_routing_key" env:"RABBITMQ_OUTBOUND_ROUTING_KEY" env-default:"outbound"`
	Prefetch           int           `yaml:"prefetch" env:"RABBITMQ_PREFETCH" env-default:"10"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`

	// Общий лимит запросов к /api/v1, по пользователям события ограничивает RateLimit
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"HTTP_RPS" env-default:"50"`
	RequestBurst      int     `yaml:"request_burst" env:"HTTP_BURST" env-default:"100"`
}

// RateLimit ограничение частоты событий от одного пользователя
type RateLimit struct {
	EventsPerSecond float64 `yaml:"events_per_second" env:"RATE_LIMIT_RPS" env-default:"2"`
	Burst           int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"5"`
}

// Digest расписание сводки ожидающих заказов для главного администратора
type Digest struct {
	DigestDisabled bool   `yaml:"disabled" env:"DIGEST_DISABLED"`
	DigestSchedule string `yaml:"schedule" env:"DIGEST_SCHEDULE" env-default:"0 9 * * *"`
}

// Catalog каталог платных тарифов и Passe de Elite
type Catalog struct {
	Tiers          []models.Tier `yaml:"tiers"`
	Elite          models.Tier   `yaml:"elite"`
	SupportContact string        `yaml:"support_contact" env:"SUPPORT_CONTACT" env-default:"@Luxzin7"`
}

// DefaultTiers тарифы, которые используются, если каталог в конфиге пуст.
func DefaultTiers() []models.Tier {
	return []models.Tier{
		{Key: "1dia", Label: "1 dia", Price: "R$1,90", PaymentURL: "https://mpago.la/1w9Ub5S"},
		{Key: "7dias", Label: "7 dias", Price: "R$6,00", PaymentURL: "https://mpago.la/1Wo2Yof"},
		{Key: "1mes", Label: "1 mês", Price: "R$16,00", PaymentURL: "https://mpago.la/1wm1afH"},
		{Key: "90dias", Label: "90 dias", Price: "R$29,00", PaymentURL: "https://mpago.la/1vxTRn8"},
	}
}

// DefaultElite Passe de Elite по умолчанию.
func DefaultElite() models.Tier {
	return models.Tier{
		Key:        models.ElitePrefix,
		Label:      "Passe de Elite",
		Price:      "Consultar preço",
		PaymentURL: "https://mpago.li/2zaGF45",
	}
}

// Tier ищет тариф по ключу.
func (c Catalog) Tier(key string) (models.Tier, bool) {
	for _, t := range c.Tiers {
		if t.Key == key {
			return t, true
		}
	}
	return models.Tier{}, false
}

// EliteTier возвращает Passe de Elite.
func (c Catalog) EliteTier() models.Tier {
	return c.Elite
}

// AllTiers возвращает все платные тарифы в порядке из конфига.
func (c Catalog) AllTiers() []models.Tier {
	out := make([]models.Tier, len(c.Tiers))
	copy(out, c.Tiers)
	return out
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла, применяет значения по умолчанию и проверяет его.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.applyCatalogDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) applyCatalogDefaults() {
	if len(c.Tiers) == 0 {
		c.Tiers = DefaultTiers()
	}
	def := DefaultElite()
	if c.Elite.Key == "" {
		c.Elite.Key = def.Key
	}
	if c.Elite.Label == "" {
		c.Elite.Label = def.Label
	}
	if c.Elite.Price == "" {
		c.Elite.Price = def.Price
	}
	if c.Elite.PaymentURL == "" {
		c.Elite.PaymentURL = def.PaymentURL
	}
}

func (c *Config) validate() error {
	if c.RootPrincipalID <= 0 {
		return fmt.Errorf("root_principal_id must be positive, got %d", c.RootPrincipalID)
	}
	switch c.Backend {
	case BackendRedis, BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	seen := make(map[string]struct{}, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Key == "" {
			return fmt.Errorf("catalog tier without key")
		}
		if _, ok := seen[t.Key]; ok {
			return fmt.Errorf("duplicate catalog tier %q", t.Key)
		}
		seen[t.Key] = struct{}{}
	}
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RootPrincipalID: %d\n"+
			"Storage:\n"+
			"  Backend: %s\n"+
			"  PostgresDSN: %s\n"+
			"  Timeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  Password: %s\n"+
			"  User: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"  DialTimeout: %s\n"+
			"  Timeout: %s\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"  EventsQueue: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Digest:\n"+
			"  Disabled: %t\n"+
			"  Schedule: %s\n"+
			"Catalog:\n"+
			"  Tiers: %d\n",
		c.Env,
		c.RootPrincipalID,
		c.Backend,
		mask(c.PostgresDSN),
		c.StorageTimeout,
		c.AddressRedis,
		mask(c.Password),
		c.User,
		c.DB,
		c.MaxRetries,
		c.DialTimeout,
		c.TimeoutRedis,
		mask(c.RabbitMQURL),
		c.EventsQueue,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.DigestDisabled,
		c.DigestSchedule,
		len(c.Tiers),
	)
}
