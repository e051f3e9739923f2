// Package config предоставляет структуры и функции для загрузки конфига сервиса.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// MinSecretKeyLen — минимальная длина ключа подписи HS256.
const MinSecretKeyLen = 32

// Config общая структура для хранения настроек
type Config struct {
	Env                     string          `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string          `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string          `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              HTTPServer      `yaml:"http_server"`
	JWTToken                JWTToken        `yaml:"jwt"`
	RateLimit               RateLimit       `yaml:"rate_limit"`
	RedisConnection         RedisConnection `yaml:"redis_connection"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	GRPC                    GRPC            `yaml:"grpc"`
	Init                    Init            `yaml:"init"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// JWTToken структура для работы с токенами доступа
type JWTToken struct {
	SecretKey string        `yaml:"secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RateLimit настройки ограничителя запросов.
type RateLimit struct {
	IdleTTL         time.Duration `yaml:"idle_ttl" env-default:"2h"`
	CleanupEvery    time.Duration `yaml:"cleanup_every" env-default:"5m"`
	DisableEviction bool          `yaml:"disable_eviction"`
	LoginRPS        float64       `yaml:"login_rps" env-default:"5"`
	LoginBurst      int           `yaml:"login_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой Address отключает рассылку событий смены плана.
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"3s"`
	PlanChannel string        `yaml:"plan_channel" env-default:"access-control:plan-changes"`
}

// RabbitMQ настройки публикации аудита входов. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"auth.events"`
	Retries    int           `yaml:"retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// GRPC настройки gRPC-сервиса аутентификации.
// Пустой Address отключает сервер. Непустой RemoteAuthAddress переводит
// проверку токенов HTTP-запросов на удалённый сервис.
type GRPC struct {
	Address           string `yaml:"address" env:"GRPC_ADDRESS"`
	RemoteAuthAddress string `yaml:"remote_auth_address" env:"GRPC_REMOTE_AUTH_ADDRESS"`
}

// Init управляет начальным заполнением хранилища.
type Init struct {
	AddAdmin bool `yaml:"add_admin" env:"INIT_ADD_ADMIN"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по пути path.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет значения, без которых сервис не может стартовать.
func (c *Config) Validate() error {
	if len(c.JWTToken.SecretKey) < MinSecretKeyLen {
		return fmt.Errorf("jwt secret key must be at least %d bytes", MinSecretKeyLen)
	}
	if c.JWTToken.TokenTTL <= 0 {
		return errors.New("jwt token ttl must be positive")
	}
	if !c.RateLimit.DisableEviction && (c.RateLimit.IdleTTL <= 0 || c.RateLimit.CleanupEvery <= 0) {
		return errors.New("rate limit idle ttl and cleanup interval must be positive")
	}
	if c.RateLimit.LoginRPS <= 0 || c.RateLimit.LoginBurst <= 0 {
		return errors.New("login rate and burst must be positive")
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
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWTToken:\n"+
			"  SecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"RateLimit:\n"+
			"  IdleTTL: %s\n"+
			"  CleanupEvery: %s\n"+
			"  DisableEviction: %t\n"+
			"  LoginRPS: %g\n"+
			"  LoginBurst: %d\n"+
			"RedisConnection:\n"+
			"  Address: %s\n"+
			"  Password: %s\n"+
			"  PlanChannel: %s\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"  Exchange: %s\n"+
			"GRPC:\n"+
			"  Address: %s\n"+
			"  RemoteAuthAddress: %s\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.MigrationsPath,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.HTTPServer.IdleTimeout,
		mask(c.JWTToken.SecretKey),
		c.JWTToken.TokenTTL,
		c.RateLimit.IdleTTL,
		c.RateLimit.CleanupEvery,
		c.RateLimit.DisableEviction,
		c.RateLimit.LoginRPS,
		c.RateLimit.LoginBurst,
		c.RedisConnection.Address,
		mask(c.RedisConnection.Password),
		c.RedisConnection.PlanChannel,
		mask(c.RabbitMQ.URL),
		c.RabbitMQ.Exchange,
		c.GRPC.Address,
		c.GRPC.RemoteAuthAddress,
	)
}
