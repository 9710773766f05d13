package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"crypto_dash/internal/engine"
	"crypto_dash/internal/infra"
)

// Server exposes the dashboard view model and user actions as JSON.
type Server struct {
	router    *http.ServeMux
	server    *http.Server
	orch      *engine.Orchestrator
	ws        http.Handler
	metrics   *infra.Metrics
	chartPoll time.Duration
	logger    *slog.Logger
}

// NewServer builds the router. ws may be nil to disable the notification stream.
func NewServer(
	addr string,
	orch *engine.Orchestrator,
	ws http.Handler,
	metrics *infra.Metrics,
	chartPoll time.Duration,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	s := &Server{
		router:    http.NewServeMux(),
		orch:      orch,
		ws:        ws,
		metrics:   metrics,
		chartPoll: chartPoll,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// View
	s.router.HandleFunc("GET /api/view", s.handleView)
	s.router.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	s.router.HandleFunc("POST /api/refresh", s.handleRefresh)

	// Favorites
	s.router.HandleFunc("POST /api/favorites/{id}", s.handleToggleFavorite)

	// Alerts
	s.router.HandleFunc("GET /api/alerts", s.handleListAlerts)
	s.router.HandleFunc("POST /api/alerts", s.handleAddAlert)
	s.router.HandleFunc("DELETE /api/alerts/{id}", s.handleDeleteAlert)

	// Portfolio
	s.router.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	s.router.HandleFunc("POST /api/portfolio", s.handleAddPosition)
	s.router.HandleFunc("DELETE /api/portfolio/{index}", s.handleDeletePosition)

	// Comparison
	s.router.HandleFunc("POST /api/compare/{query}", s.handleAddComparison)
	s.router.HandleFunc("DELETE /api/compare/{query}", s.handleRemoveComparison)

	// Charts
	s.router.HandleFunc("GET /api/predict/{id}", s.handlePredict)
	s.router.HandleFunc("POST /api/watch/{id}", s.handleWatch)
	s.router.HandleFunc("DELETE /api/watch/{id}", s.handleUnwatch)
	s.router.HandleFunc("GET /api/assets/{id}", s.handleAssetDetail)

	// Preferences
	s.router.HandleFunc("PUT /api/theme", s.handleSetTheme)

	// Status
	s.router.HandleFunc("GET /api/metrics", s.handleMetrics)

	if s.ws != nil {
		s.router.Handle("GET /ws", s.ws)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("🌐 Starting web server", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
