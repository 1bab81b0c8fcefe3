package admin

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/jekabolt/grbpwr-crm/internal/export"
	"github.com/jekabolt/grbpwr-crm/internal/form"
	"github.com/jekabolt/grbpwr-crm/internal/grid"
	"github.com/jekabolt/grbpwr-crm/internal/report"
)

// ListReports returns the available report views.
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Views())
}

type reportPage struct {
	Name     string        `json:"name"`
	Title    string        `json:"title"`
	Total    int           `json:"total"`
	Count    int           `json:"count"`
	Sort     string        `json:"sort,omitempty"`
	Dir      string        `json:"dir,omitempty"`
	Headers  []grid.Header `json:"headers"`
	Records  []grid.Record `json:"records"`
	Selected []string      `json:"selected"`
}

// view builds the requested grid with the query applied.
func (s *Server) view(r *http.Request) (grid.Grid, report.Info, grid.Query, error) {
	name := chi.URLParam(r, "view")
	info, err := s.reports.Lookup(name)
	if err != nil {
		return nil, report.Info{}, grid.Query{}, err
	}
	res := s.ctrl.Current()
	if res == nil {
		return nil, report.Info{}, grid.Query{}, fmt.Errorf("report %q: %w", name, gerr.NoSnapshot)
	}
	g, err := s.reports.Build(name, res.Dataset, res.Snapshot)
	if err != nil {
		return nil, report.Info{}, grid.Query{}, err
	}
	q := report.ParseQuery(r.URL.Query())
	g.Apply(q)
	return g, info, q, nil
}

// GetReport returns one page of a report view: searched, filtered and sorted.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	g, info, q, err := s.view(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records := g.Records()
	page := reportPage{
		Name:     info.Name,
		Title:    info.Title,
		Total:    g.Total(),
		Count:    len(records),
		Headers:  g.Headers(),
		Records:  records,
		Selected: g.Selected(),
	}
	if q.Sort.Key != "" && q.Sort.Direction != grid.Unsorted {
		page.Sort = q.Sort.Key
		page.Dir = q.Sort.Direction.String()
	}
	writeJSON(w, http.StatusOK, page)
}

type deliveryResult struct {
	File     string `json:"file"`
	Delivery string `json:"delivery"`
	Location string `json:"location"`
	Records  int    `json:"records"`
}

// Export renders the current view and either streams the file or hands it to
// a delivery channel given by ?deliver=.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	req := form.ExportRequest{
		Format:  r.URL.Query().Get("format"),
		Deliver: r.URL.Query().Get("deliver"),
	}
	if err := req.Validate(s.deliveryNames()); err != nil {
		writeError(w, r, exportFormError(err))
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deliver := req.Deliver
	var target dependency.FileDelivery
	if deliver != "" {
		target = s.deliveries[deliver]
	}

	g, info, _, err := s.view(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := export.Render(g, format, export.Options{Title: info.Title, Now: s.now()})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if target == nil {
		w.Header().Set("Content-Type", f.MIMEType)
		disposition := "attachment"
		if format == export.FormatHTML {
			disposition = "inline"
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, f.Name))
		w.Header().Set("Content-Length", strconv.Itoa(len(f.Content)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(f.Content); err != nil {
			slog.Default().ErrorContext(r.Context(), "can't write export",
				slog.String("file", f.Name),
				slog.String("err", err.Error()),
			)
		}
		return
	}

	loc, err := target.Deliver(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryResult{
		File:     f.Name,
		Delivery: deliver,
		Location: loc,
		Records:  len(g.Records()),
	})
}

func (s *Server) deliveryNames() []string {
	names := make([]string, 0, len(s.deliveries))
	for name := range s.deliveries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exportFormError picks the sentinel matching the first rejected field.
func exportFormError(err error) error {
	for _, fv := range form.Violations(err) {
		if fv.GetField() == "deliver" {
			return fmt.Errorf("%s: %w", err.Error(), gerr.UnknownDelivery)
		}
	}
	return fmt.Errorf("%s: %w", err.Error(), gerr.UnsupportedFormat)
}
