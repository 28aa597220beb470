package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"OA_CLIENT_SECRET": "client-secret",
	}
}

// auditEnvs — переменные для включённого журнала аудита.
func auditEnvs() map[string]string {
	envs := minimalEnvs()
	envs["OA_AUDIT_ENABLED"] = "true"
	envs["OA_DB_HOST"] = "localhost"
	envs["OA_DB_NAME"] = "orgadmin"
	envs["OA_DB_USER"] = "orgadmin"
	envs["OA_DB_PASSWORD"] = "secret"
	return envs
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 5000 {
		t.Errorf("Port = %d, ожидается 5000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.KeycloakURL != "http://localhost:8080" {
		t.Errorf("KeycloakURL = %q, ожидается http://localhost:8080", cfg.KeycloakURL)
	}
	if cfg.KeycloakMasterRealm != "master" {
		t.Errorf("KeycloakMasterRealm = %q, ожидается master", cfg.KeycloakMasterRealm)
	}
	if cfg.KeycloakLoginClientID != "admin-cli" {
		t.Errorf("KeycloakLoginClientID = %q, ожидается admin-cli", cfg.KeycloakLoginClientID)
	}
	if cfg.KeycloakTimeout != 30*time.Second {
		t.Errorf("KeycloakTimeout = %v, ожидается 30s", cfg.KeycloakTimeout)
	}
	if cfg.KeycloakPageSize != 100 {
		t.Errorf("KeycloakPageSize = %d, ожидается 100", cfg.KeycloakPageSize)
	}
	if cfg.ClientSecret != "client-secret" {
		t.Errorf("ClientSecret = %q, ожидается client-secret", cfg.ClientSecret)
	}
	if cfg.SSOSessionIdleTimeout != 24*time.Hour {
		t.Errorf("SSOSessionIdleTimeout = %v, ожидается 24h", cfg.SSOSessionIdleTimeout)
	}
	if cfg.AccessTokenLifespan != 24*time.Hour {
		t.Errorf("AccessTokenLifespan = %v, ожидается 24h", cfg.AccessTokenLifespan)
	}
	if cfg.AssignAdminRole {
		t.Error("AssignAdminRole = true, ожидается false")
	}
	if cfg.JWTVerify {
		t.Error("JWTVerify = true, ожидается false")
	}
	if cfg.JWTIssuerBase != cfg.KeycloakURL {
		t.Errorf("JWTIssuerBase = %q, ожидается %q", cfg.JWTIssuerBase, cfg.KeycloakURL)
	}
	if cfg.JWKSCacheSize != 64 {
		t.Errorf("JWKSCacheSize = %d, ожидается 64", cfg.JWKSCacheSize)
	}
	if cfg.AuditEnabled {
		t.Error("AuditEnabled = true, ожидается false")
	}
	if cfg.DBHost != "" {
		t.Errorf("DBHost = %q, ожидается пустое значение без журнала", cfg.DBHost)
	}
	if cfg.DephealthGroup != "org-admin" {
		t.Errorf("DephealthGroup = %q, ожидается org-admin", cfg.DephealthGroup)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.DephealthTLSSkipVerify {
		t.Error("DephealthTLSSkipVerify = true, ожидается false")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := auditEnvs()
	envs["OA_PORT"] = "8005"
	envs["OA_LOG_LEVEL"] = "debug"
	envs["OA_LOG_FORMAT"] = "text"
	envs["OA_KEYCLOAK_URL"] = "https://keycloak.kryukov.lan"
	envs["OA_KEYCLOAK_PAGE_SIZE"] = "500"
	envs["OA_CA_CERT_PATH"] = "/certs/ca.pem"
	envs["OA_SSO_SESSION_IDLE_TIMEOUT"] = "30m"
	envs["OA_ACCESS_TOKEN_LIFESPAN"] = "5m"
	envs["OA_ASSIGN_ADMIN_ROLE"] = "true"
	envs["OA_JWT_VERIFY"] = "true"
	envs["OA_JWT_ISSUER_BASE"] = "https://sso.example.com/"
	envs["OA_JWKS_CACHE_SIZE"] = "8"
	envs["OA_DB_PORT"] = "5433"
	envs["OA_DB_SSL_MODE"] = "require"
	envs["OA_DEPHEALTH_TLS_SKIP_VERIFY"] = "true"
	envs["OA_SHUTDOWN_TIMEOUT"] = "10s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8005 {
		t.Errorf("Port = %d, ожидается 8005", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.KeycloakPageSize != 500 {
		t.Errorf("KeycloakPageSize = %d, ожидается 500", cfg.KeycloakPageSize)
	}
	if cfg.CACertPath != "/certs/ca.pem" {
		t.Errorf("CACertPath = %q, ожидается /certs/ca.pem", cfg.CACertPath)
	}
	if cfg.SSOSessionIdleTimeout != 30*time.Minute {
		t.Errorf("SSOSessionIdleTimeout = %v, ожидается 30m", cfg.SSOSessionIdleTimeout)
	}
	if cfg.AccessTokenLifespan != 5*time.Minute {
		t.Errorf("AccessTokenLifespan = %v, ожидается 5m", cfg.AccessTokenLifespan)
	}
	if !cfg.AssignAdminRole {
		t.Error("AssignAdminRole = false, ожидается true")
	}
	if !cfg.JWTVerify {
		t.Error("JWTVerify = false, ожидается true")
	}
	if cfg.JWTIssuerBase != "https://sso.example.com" {
		t.Errorf("JWTIssuerBase = %q, ожидается https://sso.example.com", cfg.JWTIssuerBase)
	}
	if cfg.JWKSCacheSize != 8 {
		t.Errorf("JWKSCacheSize = %d, ожидается 8", cfg.JWKSCacheSize)
	}
	if !cfg.AuditEnabled {
		t.Error("AuditEnabled = false, ожидается true")
	}
	if cfg.DBPort != 5433 {
		t.Errorf("DBPort = %d, ожидается 5433", cfg.DBPort)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if !cfg.DephealthTLSSkipVerify {
		t.Error("DephealthTLSSkipVerify = false, ожидается true")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingClientSecret(t *testing.T) {
	t.Setenv("OA_CLIENT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Load() не вернул ошибку при отсутствии OA_CLIENT_SECRET")
	}
}

func TestLoad_AuditMissingRequired(t *testing.T) {
	requiredVars := []string{"OA_DB_HOST", "OA_DB_NAME", "OA_DB_USER", "OA_DB_PASSWORD"}

	for _, missing := range requiredVars {
		t.Run(missing, func(t *testing.T) {
			envs := auditEnvs()
			envs[missing] = ""
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"OA_PORT", "0"},
		{"OA_PORT", "70000"},
		{"OA_PORT", "abc"},
		{"OA_LOG_LEVEL", "verbose"},
		{"OA_LOG_FORMAT", "xml"},
		{"OA_KEYCLOAK_URL", "keycloak"},
		{"OA_KEYCLOAK_TIMEOUT", "abc"},
		{"OA_KEYCLOAK_PAGE_SIZE", "0"},
		{"OA_KEYCLOAK_PAGE_SIZE", "1001"},
		{"OA_ASSIGN_ADMIN_ROLE", "yes please"},
		{"OA_JWT_VERIFY", "maybe"},
		{"OA_JWKS_CACHE_SIZE", "0"},
		{"OA_AUDIT_ENABLED", "on"},
		{"OA_DEPHEALTH_TLS_SKIP_VERIFY", "sometimes"},
		{"OA_SHUTDOWN_TIMEOUT", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку при %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_InvalidSSLMode(t *testing.T) {
	envs := auditEnvs()
	envs["OA_DB_SSL_MODE"] = "prefer"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() не вернул ошибку при OA_DB_SSL_MODE=prefer")
	}
}

// TestLoad_CACertDoesNotSkipVerify — свой CA не отключает проверку сертификата в health check.
func TestLoad_CACertDoesNotSkipVerify(t *testing.T) {
	envs := minimalEnvs()
	envs["OA_CA_CERT_PATH"] = "/certs/ca.pem"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.DephealthTLSSkipVerify {
		t.Error("DephealthTLSSkipVerify = true при заданном OA_CA_CERT_PATH")
	}
}

func TestLoad_KeycloakURLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["OA_KEYCLOAK_URL"] = "https://keycloak.kryukov.lan/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.KeycloakURL != "https://keycloak.kryukov.lan" {
		t.Errorf("KeycloakURL = %q, ожидается без trailing slash", cfg.KeycloakURL)
	}
	if cfg.JWTIssuerBase != "https://keycloak.kryukov.lan" {
		t.Errorf("JWTIssuerBase = %q, ожидается без trailing slash", cfg.JWTIssuerBase)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "orgadmin",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=orgadmin user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
	if u := cfg.DatabaseURL(); u != "postgres://db.example.com:5432/orgadmin" {
		t.Errorf("DatabaseURL() = %q", u)
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: format,
			}
			if logger := SetupLogger(cfg); logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}
