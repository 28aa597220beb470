// Точка входа org-admin — фасад над Keycloak Admin REST API для
// управления организациями (realm), их пользователями и ролями.
// Загружает конфигурацию, создаёт клиент Keycloak, при включённом журнале
// аудита подключается к PostgreSQL и применяет миграции, собирает сервисный
// слой и API handlers, запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/org-admin/internal/api/handlers"
	"github.com/bigkaa/org-admin/internal/api/middleware"
	"github.com/bigkaa/org-admin/internal/config"
	"github.com/bigkaa/org-admin/internal/database"
	"github.com/bigkaa/org-admin/internal/keycloak"
	"github.com/bigkaa/org-admin/internal/repository"
	"github.com/bigkaa/org-admin/internal/server"
	"github.com/bigkaa/org-admin/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("org-admin запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("keycloak_url", cfg.KeycloakURL),
	)

	if os.Getenv("OA_DEPHEALTH_GROUP") == "" {
		logger.Warn("OA_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx := context.Background()

	// 3. HTTP-клиент Keycloak (с дополнительным CA, если задан)
	httpClient, err := keycloak.NewHTTPClient(cfg.CACertPath, cfg.KeycloakTimeout)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата",
			slog.String("path", cfg.CACertPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if cfg.CACertPath != "" {
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.CACertPath))
	}

	// 4. Клиент Keycloak Admin REST API
	kcClient := keycloak.New(
		cfg.KeycloakURL,
		cfg.KeycloakMasterRealm,
		cfg.KeycloakLoginClientID,
		cfg.KeycloakPageSize,
		httpClient,
		logger,
	)

	// 5. Журнал аудита (опционально, OA_AUDIT_ENABLED=true)
	var (
		recorder  service.AuditRecorder
		pgChecker handlers.ReadinessChecker
		pool      *pgxpool.Pool
		pgDB      *sql.DB
	)
	if cfg.AuditEnabled {
		logger.Info("Применение миграций журнала аудита...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		pool, err = database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		recorder = repository.NewAuditEventRepository(pool)
		pgChecker = database.NewReadinessChecker(pool)
	} else {
		logger.Info("Журнал аудита отключён (OA_AUDIT_ENABLED=false)")
	}

	// 6. Сервисы
	authSvc := service.NewAuthService(kcClient, cfg.KeycloakMasterRealm, recorder, logger)
	orgSvc := service.NewOrganizationService(kcClient, service.OrganizationConfig{
		ClientSecret:          cfg.ClientSecret,
		SSOSessionIdleTimeout: cfg.SSOSessionIdleTimeout,
		AccessTokenLifespan:   cfg.AccessTokenLifespan,
		AssignAdminRole:       cfg.AssignAdminRole,
	}, recorder, logger)
	userSvc := service.NewUserService(kcClient, recorder, logger)
	roleSvc := service.NewRoleService(kcClient, logger)

	// 7. Health и API handlers
	healthHandler := handlers.NewHealthHandler(kcClient, pgChecker)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authSvc,
		orgSvc,
		userSvc,
		roleSvc,
		cfg.KeycloakMasterRealm,
		logger,
	)

	// 8. Проверка JWT (опционально, OA_JWT_VERIFY=true)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTVerify {
		jwks := middleware.NewRealmJWKS(cfg.KeycloakURL, httpClient, cfg.JWKSRefreshInterval, cfg.JWKSCacheSize, logger)
		defer jwks.Close()

		jwtAuth = middleware.NewJWTAuth(jwks, cfg.JWTIssuerBase, cfg.JWTLeeway, logger)
		logger.Info("Проверка JWT включена",
			slog.String("issuer_base", cfg.JWTIssuerBase),
			slog.Int("jwks_cache_size", cfg.JWKSCacheSize),
		)
	} else {
		logger.Info("Проверка JWT отключена, токены проверяет Keycloak")
	}

	// 9. topologymetrics — мониторинг зависимостей (Keycloak, PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(dephealthConfig(cfg, pgDB), logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("org-admin остановлен")
}

// pgConnURL — URL PostgreSQL для лейблов метрик; пусто без журнала аудита.
// dephealthConfig собирает параметры мониторинга зависимостей.
// pgDB — nil при отключённом журнале аудита.
func dephealthConfig(cfg *config.Config, pgDB *sql.DB) service.DephealthConfig {
	return service.DephealthConfig{
		ServiceID:     "org-admin",
		Group:         cfg.DephealthGroup,
		KeycloakURL:   cfg.KeycloakURL,
		MasterRealm:   cfg.KeycloakMasterRealm,
		TLSSkipVerify: cfg.DephealthTLSSkipVerify,
		DB:            pgDB,
		PGConnURL:     pgConnURL(cfg),
		CheckInterval: cfg.DephealthCheckInterval,
	}
}

func pgConnURL(cfg *config.Config) string {
	if !cfg.AuditEnabled {
		return ""
	}
	return cfg.DatabaseURL()
}
