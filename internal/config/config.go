// Пакет config — загрузка и валидация конфигурации org-admin
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации org-admin.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Keycloak ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Realm супер-администратора
	KeycloakMasterRealm string
	// Client ID для password grant (публичный клиент)
	KeycloakLoginClientID string
	// Таймаут HTTP-запросов к Keycloak
	KeycloakTimeout time.Duration
	// Размер страницы при выборке пользователей
	KeycloakPageSize int
	// Путь к CA-сертификату для TLS-соединений с Keycloak (опционально)
	CACertPath string

	// --- Провизионинг организаций ---

	// Секрет клиентов <realm>-api
	ClientSecret string
	// Таймаут простоя SSO-сессии нового realm
	SSOSessionIdleTimeout time.Duration
	// Время жизни access token нового realm
	AccessTokenLifespan time.Duration
	// Назначать ли org-admin администратору новой организации
	AssignAdminRole bool

	// --- JWT ---

	// Проверять ли подпись Bearer-токенов (иначе проверяет Keycloak)
	JWTVerify bool
	// Базовый URL Keycloak в iss токенов (по умолчанию KeycloakURL)
	JWTIssuerBase string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Максимум realm в кэше JWKS
	JWKSCacheSize int

	// --- Журнал аудита (PostgreSQL) ---

	// Включён ли журнал аудита
	AuditEnabled bool
	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- topologymetrics ---

	// Имя группы в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Не проверять сертификат Keycloak в health check (только для dev-стендов).
	// Дополнительный CA для health check задаётся через SSL_CERT_FILE.
	DephealthTLSSkipVerify bool

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// OA_PORT — порт HTTP-сервера (по умолчанию 5000)
	cfg.Port, err = getEnvInt("OA_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("OA_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("OA_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// OA_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("OA_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("OA_LOG_LEVEL: %w", err)
	}

	// OA_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("OA_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("OA_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Keycloak ---

	// OA_KEYCLOAK_URL — URL Keycloak (по умолчанию http://localhost:8080)
	cfg.KeycloakURL = strings.TrimRight(getEnvDefault("OA_KEYCLOAK_URL", "http://localhost:8080"), "/")
	if u, parseErr := url.Parse(cfg.KeycloakURL); parseErr != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("OA_KEYCLOAK_URL: некорректный URL %q", cfg.KeycloakURL)
	}

	// OA_KEYCLOAK_MASTER_REALM — realm супер-администратора (по умолчанию master)
	cfg.KeycloakMasterRealm = getEnvDefault("OA_KEYCLOAK_MASTER_REALM", "master")

	// OA_KEYCLOAK_LOGIN_CLIENT_ID — клиент password grant (по умолчанию admin-cli)
	cfg.KeycloakLoginClientID = getEnvDefault("OA_KEYCLOAK_LOGIN_CLIENT_ID", "admin-cli")

	// OA_KEYCLOAK_TIMEOUT — таймаут запросов к Keycloak (по умолчанию 30s)
	cfg.KeycloakTimeout, err = getEnvDuration("OA_KEYCLOAK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OA_KEYCLOAK_TIMEOUT: %w", err)
	}

	// OA_KEYCLOAK_PAGE_SIZE — размер страницы пользователей (по умолчанию 100)
	cfg.KeycloakPageSize, err = getEnvInt("OA_KEYCLOAK_PAGE_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("OA_KEYCLOAK_PAGE_SIZE: %w", err)
	}
	if cfg.KeycloakPageSize < 1 || cfg.KeycloakPageSize > 1000 {
		return nil, fmt.Errorf("OA_KEYCLOAK_PAGE_SIZE: значение %d вне допустимого диапазона 1-1000", cfg.KeycloakPageSize)
	}

	// OA_CA_CERT_PATH — путь к CA-сертификату Keycloak (опционально)
	cfg.CACertPath = getEnvDefault("OA_CA_CERT_PATH", "")

	// --- Провизионинг организаций ---

	// OA_CLIENT_SECRET — обязательный
	cfg.ClientSecret, err = getEnvRequired("OA_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	// OA_SSO_SESSION_IDLE_TIMEOUT — по умолчанию 24h
	cfg.SSOSessionIdleTimeout, err = getEnvDuration("OA_SSO_SESSION_IDLE_TIMEOUT", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("OA_SSO_SESSION_IDLE_TIMEOUT: %w", err)
	}

	// OA_ACCESS_TOKEN_LIFESPAN — по умолчанию 24h
	cfg.AccessTokenLifespan, err = getEnvDuration("OA_ACCESS_TOKEN_LIFESPAN", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("OA_ACCESS_TOKEN_LIFESPAN: %w", err)
	}

	// OA_ASSIGN_ADMIN_ROLE — назначать org-admin администратору (по умолчанию false)
	cfg.AssignAdminRole, err = getEnvBool("OA_ASSIGN_ADMIN_ROLE", false)
	if err != nil {
		return nil, fmt.Errorf("OA_ASSIGN_ADMIN_ROLE: %w", err)
	}

	// --- JWT ---

	// OA_JWT_VERIFY — проверка подписи токенов (по умолчанию false)
	cfg.JWTVerify, err = getEnvBool("OA_JWT_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("OA_JWT_VERIFY: %w", err)
	}

	// OA_JWT_ISSUER_BASE — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuerBase = strings.TrimRight(getEnvDefault("OA_JWT_ISSUER_BASE", cfg.KeycloakURL), "/")

	// OA_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("OA_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OA_JWT_LEEWAY: %w", err)
	}

	// OA_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("OA_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("OA_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// OA_JWKS_CACHE_SIZE — максимум realm в кэше JWKS (по умолчанию 64)
	cfg.JWKSCacheSize, err = getEnvInt("OA_JWKS_CACHE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("OA_JWKS_CACHE_SIZE: %w", err)
	}
	if cfg.JWKSCacheSize < 1 {
		return nil, fmt.Errorf("OA_JWKS_CACHE_SIZE: значение %d должно быть положительным", cfg.JWKSCacheSize)
	}

	// --- Журнал аудита ---

	// OA_AUDIT_ENABLED — журнал аудита в PostgreSQL (по умолчанию false)
	cfg.AuditEnabled, err = getEnvBool("OA_AUDIT_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("OA_AUDIT_ENABLED: %w", err)
	}
	if cfg.AuditEnabled {
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	}

	// --- topologymetrics ---

	// OA_DEPHEALTH_GROUP — группа в метриках (по умолчанию org-admin)
	cfg.DephealthGroup = getEnvDefault("OA_DEPHEALTH_GROUP", "org-admin")

	// OA_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("OA_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OA_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// OA_DEPHEALTH_TLS_SKIP_VERIFY — отключить проверку сертификата в health check (по умолчанию false)
	cfg.DephealthTLSSkipVerify, err = getEnvBool("OA_DEPHEALTH_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("OA_DEPHEALTH_TLS_SKIP_VERIFY: %w", err)
	}

	// --- Graceful shutdown ---

	// OA_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("OA_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("OA_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// loadDatabase загружает параметры PostgreSQL (только при OA_AUDIT_ENABLED=true).
func loadDatabase(cfg *Config) error {
	var err error

	// OA_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("OA_DB_HOST")
	if err != nil {
		return err
	}

	// OA_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("OA_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("OA_DB_PORT: %w", err)
	}

	// OA_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("OA_DB_NAME")
	if err != nil {
		return err
	}

	// OA_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("OA_DB_USER")
	if err != nil {
		return err
	}

	// OA_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("OA_DB_PASSWORD")
	if err != nil {
		return err
	}

	// OA_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("OA_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("OA_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (используйте true/false)", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
