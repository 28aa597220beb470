// Пакет server — HTTP-сервер org-admin с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/org-admin/internal/api/handlers"
	"github.com/bigkaa/org-admin/internal/api/middleware"
	"github.com/bigkaa/org-admin/internal/config"
)

// Server — HTTP-сервер org-admin.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — проверка JWT (nil — OA_JWT_VERIFY=false, токены передаются в Keycloak как есть).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := NewRouter(handler, jwtAuth, cfg.KeycloakMasterRealm, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.KeycloakTimeout,
		IdleTimeout:  120 * time.Second,
	}
	// Провизионинг — до десятка последовательных вызовов Keycloak
	if srv.WriteTimeout < 60*time.Second {
		srv.WriteTimeout = 60 * time.Second
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi router со всеми маршрутами API.
// Публичные: health, metrics, вход. Остальные требуют Bearer token.
func NewRouter(h *handlers.APIHandler, jwtAuth *middleware.JWTAuth, masterRealm string, logger *slog.Logger) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.RequestID())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Post("/auth/superadmin", h.SuperAdminLogin)
	router.Post("/auth/login", h.Login)

	router.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken())
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin(masterRealm))
			r.Post("/org/create", h.CreateOrganization)
			r.Post("/org/resume", h.ResumeOrganization)
			r.Delete("/org/delete", h.DeleteOrganization)
		})

		r.Post("/user/create", h.CreateUser)
		r.Put("/org/user/edit", h.EditUser)
		r.Get("/users/list", h.ListUsers)
		r.Delete("/users/delete", h.DeleteUser)
		r.Get("/roles/list", h.ListRoles)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
