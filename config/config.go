package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DB       DBConfig
	Telegram TelegramConfig
	Shop     ShopConfig
	Dialog   DialogConfig
	Redis    RedisConfig
	Server   ServerConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN is the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

type TelegramConfig struct {
	Token          string
	AdminIDs       []int64
	AdminLoginHash string // bcrypt hash of the /login password; empty disables /login
}

type ShopConfig struct {
	Variant        string // hostel or market
	Store          string // memory or postgres
	SalesLogFile   string
	SupportContact string
	ExchangeRate   decimal.Decimal // INR per USD
	PageSize       int
}

type DialogConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

type RedisConfig struct {
	Addr     string // empty keeps dialogs in memory
	Password string
	DB       int
}

type ServerConfig struct {
	MetricsAddr string // empty disables the HTTP server
	LogLevel    string
	AutoMigrate bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("DB_PORT: %w", err)
	}
	admins, err := parseIDs(getEnv("ADMIN_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	ttl, err := time.ParseDuration(getEnv("DIALOG_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("DIALOG_TTL: %w", err)
	}
	attempts, err := strconv.Atoi(getEnv("DIALOG_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("DIALOG_MAX_ATTEMPTS: %w", err)
	}
	rate, err := decimal.NewFromString(getEnv("EXCHANGE_RATE", "83"))
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("EXCHANGE_RATE must be a positive number")
	}
	pageSize, err := strconv.Atoi(getEnv("PAGE_SIZE", "5"))
	if err != nil || pageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be a positive integer")
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}

	cfg := &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     port,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "hostel_market"),
		},
		Telegram: TelegramConfig{
			Token:          getEnv("TOKEN", ""),
			AdminIDs:       admins,
			AdminLoginHash: getEnv("ADMIN_LOGIN_HASH", ""),
		},
		Shop: ShopConfig{
			Variant:        strings.ToLower(getEnv("VARIANT", "hostel")),
			Store:          strings.ToLower(getEnv("STORE", "memory")),
			SalesLogFile:   getEnv("SALES_LOG_FILE", "sales_log.xlsx"),
			SupportContact: getEnv("SUPPORT_CONTACT", "@support"),
			ExchangeRate:   rate,
			PageSize:       pageSize,
		},
		Dialog: DialogConfig{
			TTL:         ttl,
			MaxAttempts: attempts,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			MetricsAddr: getEnv("METRICS_ADDR", ""),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			AutoMigrate: isTrue(getEnv("AUTO_MIGRATE", "")),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Shop.Variant {
	case "hostel", "market":
	default:
		return fmt.Errorf("VARIANT must be hostel or market, got %q", c.Shop.Variant)
	}
	switch c.Shop.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("STORE must be memory or postgres, got %q", c.Shop.Store)
	}
	if c.Dialog.MaxAttempts < 0 {
		return fmt.Errorf("DIALOG_MAX_ATTEMPTS must be >= 0")
	}
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func isTrue(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
