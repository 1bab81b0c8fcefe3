// Package admin serves the reporting dashboard, report views and exports
// over JSON HTTP.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/jekabolt/grbpwr-crm/internal/auth/jwt"
	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/jekabolt/grbpwr-crm/internal/form"
	"github.com/jekabolt/grbpwr-crm/internal/recompute"
	"github.com/jekabolt/grbpwr-crm/internal/report"
	"google.golang.org/grpc/status"
)

// Controller is the part of recompute.Controller the handlers use.
type Controller interface {
	Current() *recompute.Result
	Filter() entity.ReportFilter
	SetFilter(f entity.ReportFilter) error
	Refresh()
	State() recompute.State
	Generation() uint64
	LastError() error
	Location() *time.Location
	Subscribe() (<-chan recompute.Update, func())
}

// Server implements handlers for admin.
type Server struct {
	ctrl       Controller
	reports    *report.Registry
	publisher  dependency.ChangePublisher
	deliveries map[string]dependency.FileDelivery
	now        func() time.Time
}

// New creates a new server with admin handlers. deliveries maps a delivery
// name (bucket, mail) to its channel; missing channels are rejected.
func New(
	ctrl Controller,
	reports *report.Registry,
	publisher dependency.ChangePublisher,
	deliveries map[string]dependency.FileDelivery,
) *Server {
	if deliveries == nil {
		deliveries = map[string]dependency.FileDelivery{}
	}
	return &Server{
		ctrl:       ctrl,
		reports:    reports,
		publisher:  publisher,
		deliveries: deliveries,
		now:        time.Now,
	}
}

// Router returns the admin routes. exportMW wraps the export endpoint only.
func (s *Server) Router(exportMW ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/dashboard", s.GetDashboard)
	r.Put("/dashboard/filter", s.SetFilter)
	r.Post("/dashboard/refresh", s.Refresh)
	r.Get("/dashboard/stream", s.Stream)
	r.Get("/reports", s.ListReports)
	r.Get("/reports/{view}", s.GetReport)
	r.With(exportMW...).Get("/reports/{view}/export", s.Export)
	r.Post("/changes/{table}", s.PublishChange)
	return r
}

type filterView struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status,omitempty"`
}

func newFilterView(f entity.ReportFilter, loc *time.Location) filterView {
	fv := filterView{
		From: f.Period.From.In(loc).Format(time.DateOnly),
		To:   f.Period.To.In(loc).Format(time.DateOnly),
	}
	if f.Status != nil {
		fv.Status = string(*f.Status)
	}
	return fv
}

type dashboard struct {
	Generation uint64                  `json:"generation"`
	State      string                  `json:"state"`
	Filter     filterView              `json:"filter"`
	Computed   *filterView             `json:"computedFilter,omitempty"`
	ComputedAt *time.Time              `json:"computedAt,omitempty"`
	LastError  string                  `json:"lastError,omitempty"`
	Snapshot   *entity.MetricsSnapshot `json:"snapshot"`
}

func (s *Server) dashboard() dashboard {
	loc := s.ctrl.Location()
	d := dashboard{
		Generation: s.ctrl.Generation(),
		State:      s.ctrl.State().String(),
		Filter:     newFilterView(s.ctrl.Filter(), loc),
	}
	if err := s.ctrl.LastError(); err != nil {
		d.LastError = err.Error()
	}
	if res := s.ctrl.Current(); res != nil {
		cf := newFilterView(res.Filter, loc)
		at := res.ComputedAt
		d.Computed = &cf
		d.ComputedAt = &at
		d.Snapshot = res.Snapshot
	}
	return d
}

// GetDashboard returns the current snapshot with controller state.
func (s *Server) GetDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard())
}

// SetFilter changes the filter and schedules a recomputation.
func (s *Server) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req form.DashboardFilter
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("can't decode filter: %s: %w", err.Error(), gerr.InvalidFilter))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%s: %w", err.Error(), gerr.InvalidFilter))
		return
	}
	f, err := parseFilter(req, s.ctrl.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ctrl.SetFilter(f); err != nil {
		writeError(w, r, err)
		return
	}
	slog.Default().InfoContext(r.Context(), "report filter changed",
		slog.String("period", f.Period.String()),
		slog.String("status", req.Status),
		slog.String("operator", jwt.Subject(r.Context())),
		slog.Uint64("generation", s.ctrl.Generation()),
	)
	writeJSON(w, http.StatusAccepted, s.dashboard())
}

func parseFilter(req form.DashboardFilter, loc *time.Location) (entity.ReportFilter, error) {
	p, err := entity.ParsePeriod(req.From, req.To, loc)
	if err != nil {
		return entity.ReportFilter{}, fmt.Errorf("%s: %w", err.Error(), gerr.InvalidPeriod)
	}
	if err := p.Validate(); err != nil {
		return entity.ReportFilter{}, fmt.Errorf("%s: %w", err.Error(), gerr.InvalidPeriod)
	}
	st, err := entity.ParseOrderStatus(req.Status)
	if err != nil {
		return entity.ReportFilter{}, fmt.Errorf("%s: %w", err.Error(), gerr.InvalidFilter)
	}
	return entity.ReportFilter{Period: p, Status: st}, nil
}

// Refresh schedules a recomputation with the current filter.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Refresh()
	writeJSON(w, http.StatusAccepted, s.dashboard())
}

// PublishChange accepts a change notification for a source table.
func (s *Server) PublishChange(w http.ResponseWriter, r *http.Request) {
	t, err := entity.ParseTable(chi.URLParam(r, "table"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%s: %w", err.Error(), gerr.UnknownTable))
		return
	}
	if err := s.publisher.Publish(r.Context(), entity.ChangeEvent{Table: t}); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps gerr status errors to HTTP codes; anything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	st, _ := status.FromError(err)
	code := runtime.HTTPStatusFromCode(st.Code())
	if code >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "admin request failed",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
	}
	writeJSON(w, code, errorBody{Error: err.Error(), Code: st.Code().String()})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("can't encode response",
			slog.String("err", err.Error()),
		)
	}
}
