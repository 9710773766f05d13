package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"crypto_dash/internal/domain"

	"github.com/shopspring/decimal"
)

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsUpstream(err):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrRefreshInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotLoaded), errors.Is(err, domain.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", slog.Any("error", err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("q") {
		s.orch.SetSearch(q.Get("q"))
	}
	if q.Has("sort") {
		s.orch.SetSort(domain.SortKey(q.Get("sort")))
	}
	s.writeJSON(w, http.StatusOK, s.orch.ViewModel())
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if s.orch.Snapshot() == nil {
		s.writeError(w, r, domain.ErrNotLoaded)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="crypto_listing.csv"`)
	if err := s.orch.ExportCSV(w); err != nil {
		s.logger.Error("Failed to export csv", slog.Any("error", err))
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.ViewModel())
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	on, err := s.orch.ToggleFavorite(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": on})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.ViewModel().Alerts)
}

type addAlertRequest struct {
	Asset     string          `json:"asset"`
	Threshold decimal.Decimal `json:"threshold"`
	Label     string          `json:"label"`
}

func (s *Server) handleAddAlert(w http.ResponseWriter, r *http.Request) {
	var req addAlertRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rule, err := s.orch.AddAlert(r.Context(), req.Asset, req.Threshold, req.Label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.RemoveAlert(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.ViewModel().Portfolio)
}

type addPositionRequest struct {
	Asset     string          `json:"asset"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

func (s *Server) handleAddPosition(w http.ResponseWriter, r *http.Request) {
	var req addPositionRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := s.orch.AddPosition(r.Context(), req.Asset, req.Quantity, req.CostBasis)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pos)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "index", Reason: "must be an integer"})
		return
	}
	confirmed := r.URL.Query().Get("confirm") == "true"
	removed, err := s.orch.RemovePosition(r.Context(), index, func(domain.PortfolioPosition) bool { return confirmed })
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleAddComparison(w http.ResponseWriter, r *http.Request) {
	if _, err := s.orch.AddComparison(r.PathValue("query")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.ViewModel().Comparison)
}

func (s *Server) handleRemoveComparison(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("query")
	if !s.orch.RemoveComparison(id) {
		s.writeError(w, r, &domain.NotFoundError{Query: id})
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.ViewModel().Comparison)
}

// daysParam reads ?days=, returning 0 (configured default) when absent.
func daysParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, &domain.ValidationError{Field: "days", Reason: "must be a positive integer"}
	}
	return days, nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.orch.LoadPrediction(r.Context(), r.PathValue("id"), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	days, err := daysParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// The watch outlives the request; Orchestrator.Stop cancels it.
	ctx := context.WithoutCancel(r.Context())
	if err := s.orch.WatchChart(ctx, r.PathValue("id"), days, s.chartPoll); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.orch.UnwatchChart(id) {
		s.writeError(w, r, &domain.NotFoundError{Query: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssetDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.orch.LoadAssetDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.orch.SetTheme(r.Context(), req.Theme); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, themeRequest{Theme: s.orch.ViewModel().Theme})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
