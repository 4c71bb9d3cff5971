package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds all configuration for the application
type Config struct {
	AppMode       string
	Port          string
	StorageDriver string
	Database      DatabaseConfig
	JWT           JWTConfig
	Cookie        CookieConfig
	Redis         RedisConfig
	Inventory     InventoryConfig
	Notify        NotifyConfig
	Tracing       TracingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds staff token settings
type JWTConfig struct {
	Secret          string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CookieConfig holds auth cookie settings
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// RedisConfig enables the shared allocation lock when URL is set
type RedisConfig struct {
	URL string
}

// InventoryConfig holds the scheduling and hold-time settings
type InventoryConfig struct {
	SweepCron       string
	EligibilityCron string
	ReservationHold time.Duration
	ReaperInterval  time.Duration
	DonorDeferral   time.Duration
	ExpiringSoon    time.Duration
}

// NotifyConfig holds the event webhook
type NotifyConfig struct {
	WebhookURL string
}

// TracingConfig holds OTLP export settings. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	config, err := FromEnv()
	if err != nil {
		return nil, err
	}

	AppConfig = config
	log.Printf("✅ Configuration loaded successfully [MODE: %s, STORAGE: %s]", config.AppMode, config.StorageDriver)
	return config, nil
}

// FromEnv builds the config from the process environment only
func FromEnv() (*Config, error) {
	// trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	driver := strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", StorageMySQL)))
	if driver != StorageMySQL && driver != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: '%s' (must be '%s' or '%s')", driver, StorageMySQL, StorageMemory)
	}

	inventory := loadInventoryConfig()
	if inventory.ReservationHold <= 0 {
		return nil, fmt.Errorf("RESERVATION_HOLD_MINUTES must be positive")
	}

	return &Config{
		AppMode:       appMode,
		Port:          getEnv("PORT", "3000"),
		StorageDriver: driver,
		Database:      loadDatabaseConfig(appMode),
		JWT:           loadJWTConfig(appMode),
		Cookie:        loadCookieConfig(appMode),
		Redis:         RedisConfig{URL: getEnv("REDIS_URL", "")},
		Inventory:     inventory,
		Notify:        NotifyConfig{WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", "")},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "bloodbank"),
		},
	}, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "bloodbank"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		RefreshSecret:   getEnv(prefix+"JWT_REFRESH_SECRET", "default_refresh_secret"),
		AccessTokenTTL:  time.Duration(getEnvInt("ACCESS_TOKEN_MINUTES", 15)) * time.Minute,
		RefreshTokenTTL: time.Duration(getEnvInt("REFRESH_TOKEN_DAYS", 7)) * 24 * time.Hour,
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := modePrefix(mode)

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadInventoryConfig() InventoryConfig {
	return InventoryConfig{
		SweepCron:       getEnv("SWEEP_CRON", "0 2 * * *"),
		EligibilityCron: getEnv("ELIGIBILITY_CRON", "30 2 * * *"),
		ReservationHold: time.Duration(getEnvInt("RESERVATION_HOLD_MINUTES", 120)) * time.Minute,
		ReaperInterval:  time.Duration(getEnvInt("RESERVATION_REAPER_SECONDS", 60)) * time.Second,
		DonorDeferral:   time.Duration(getEnvInt("DONOR_DEFERRAL_DAYS", 56)) * 24 * time.Hour,
		ExpiringSoon:    time.Duration(getEnvInt("EXPIRING_SOON_DAYS", 3)) * 24 * time.Hour,
	}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default when the variable is unset or not a number
func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return n
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// UsesMemoryStore reports whether the process keeps everything in memory
func (c *Config) UsesMemoryStore() bool {
	return c.StorageDriver == StorageMemory
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://bloodbank.local"
	}
	return origins
}
