package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "lending-engine/docs"
	"lending-engine/internal/api/handler"
	mw "lending-engine/internal/api/middleware"
	"lending-engine/internal/config"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/domain/subscription"
)

const requestTimeout = 60 * time.Second

// SetupRouter wires the HTTP surface. ctx bounds background middleware work
// such as the rate limiter's bucket sweeper.
func SetupRouter(ctx context.Context, loanService loan.LoanService, subscriptionService subscription.SubscriptionService, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(ctx, router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)
	setupAuthRoutes(router, cfg, logger)
	setupCustomerRoutes(router, cfg, subscriptionService, loanService, logger)
	setupLoanRoutes(router, cfg, loanService, logger)

	return router
}

func setupMiddleware(ctx context.Context, router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger, "/health", metricsPathOf(cfg)))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(mw.NewRateLimiterMiddleware(ctx, cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func metricsPathOf(cfg *config.Config) string {
	if cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return cfg.Metrics.Path
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := metricsPathOf(cfg)
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupCustomerRoutes(router *chi.Mux, cfg *config.Config, subs subscription.SubscriptionService, loans loan.LoanService, logger *slog.Logger) {
	h := handler.NewCustomerHandler(subs, loans, logger)

	router.Route("/customers/{customerNumber}", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/subscription", h.GetSubscription)
		r.Post("/subscription", h.Subscribe)
		r.Delete("/subscription", h.Unsubscribe)
		r.Get("/active-loan", h.GetActiveLoan)
		r.Get("/loans", h.ListLoans)
		r.Get("/loans/latest", h.GetLatestLoan)
	})
}

func setupLoanRoutes(router *chi.Mux, cfg *config.Config, loans loan.LoanService, logger *slog.Logger) {
	h := handler.NewLoanHandler(loans, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.RequestLoan)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", h.GetLoan)
			r.Post("/cancel", h.CancelLoan)
			r.Post("/complete", h.CompleteLoan)
		})
	})
}
