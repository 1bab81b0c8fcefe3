package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/jekabolt/grbpwr-crm/config"
	"github.com/jekabolt/grbpwr-crm/internal/aggregate"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/jekabolt/grbpwr-crm/internal/export"
	"github.com/jekabolt/grbpwr-crm/internal/report"
	"github.com/jekabolt/grbpwr-crm/internal/store"
	"github.com/jekabolt/grbpwr-crm/log"
	"github.com/spf13/cobra"
)

var (
	reportFlags struct {
		from, to  string
		status    string
		view      string
		format    string
		searchKey string
		search    string
		filters   []string
		sort      string
		dir       string
		out       string
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Compute metrics for a period and print them or export a report view",
		RunE:  runReport,
	}
)

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.from, "from", "", "first day of the period, YYYY-MM-DD (default: recompute.default_days ago)")
	f.StringVar(&reportFlags.to, "to", "", "last day of the period, YYYY-MM-DD (default: today)")
	f.StringVar(&reportFlags.status, "status", "", "only count orders with this status")
	f.StringVar(&reportFlags.view, "view", "", "report view to export; prints the metrics snapshot when empty")
	f.StringVar(&reportFlags.format, "format", "csv", "export format: csv, json, html")
	f.StringVar(&reportFlags.searchKey, "search-key", "", "column to search")
	f.StringVar(&reportFlags.search, "search", "", "search text")
	f.StringSliceVar(&reportFlags.filters, "filter", nil, "column filter as key=value, repeatable")
	f.StringVar(&reportFlags.sort, "sort", "", "sort column")
	f.StringVar(&reportFlags.dir, "dir", "", "sort direction: asc, desc")
	f.StringVar(&reportFlags.out, "out", ".", "output directory for exports")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("cannot load a config %v", err.Error())
	}
	log.Setup(cfg.Logger)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine, err := aggregate.New(&cfg.Reports.Config)
	if err != nil {
		return fmt.Errorf("can't create aggregation engine: %w", err)
	}
	filter, err := reportFilter(cfg, engine.Location())
	if err != nil {
		return err
	}

	db, err := store.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("couldn't connect to mysql: %w", err)
	}
	defer db.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Recompute.FetchTimeout)
	defer cancel()
	ds, err := db.FetchDataset(fetchCtx, filter)
	if err != nil {
		return err
	}
	snap, err := engine.Compute(ds, filter)
	if err != nil {
		return err
	}

	if reportFlags.view == "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return exportView(cmd, cfg, ds, snap)
}

func reportFilter(cfg *config.Config, loc *time.Location) (entity.ReportFilter, error) {
	f := entity.LastDays(time.Now(), cfg.Recompute.DefaultDays, loc)
	if reportFlags.from != "" || reportFlags.to != "" {
		from, to := reportFlags.from, reportFlags.to
		if from == "" {
			from = f.Period.From.Format("2006-01-02")
		}
		if to == "" {
			to = f.Period.To.Format("2006-01-02")
		}
		p, err := entity.ParsePeriod(from, to, loc)
		if err != nil {
			return f, err
		}
		if err := p.Validate(); err != nil {
			return f, err
		}
		f.Period = p
	}
	if reportFlags.status != "" {
		st, err := entity.ParseOrderStatus(reportFlags.status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	return f, nil
}

func exportView(cmd *cobra.Command, cfg *config.Config, ds *entity.Dataset, snap *entity.MetricsSnapshot) error {
	format, err := export.ParseFormat(reportFlags.format)
	if err != nil {
		return err
	}
	reports, err := report.New(&cfg.Reports.Grid)
	if err != nil {
		return fmt.Errorf("can't create report registry: %w", err)
	}
	info, err := reports.Lookup(reportFlags.view)
	if err != nil {
		return err
	}
	g, err := reports.Build(info.Name, ds, snap)
	if err != nil {
		return err
	}

	v := url.Values{}
	v.Set(report.ParamSearchKey, reportFlags.searchKey)
	v.Set(report.ParamSearch, reportFlags.search)
	v.Set(report.ParamSort, reportFlags.sort)
	v.Set(report.ParamDirection, reportFlags.dir)
	for _, kv := range reportFlags.filters {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("bad filter %q, want key=value", kv)
		}
		v.Set(report.ParamFilterPrefix+key, val)
	}
	g.Apply(report.ParseQuery(v))

	file, err := export.Render(g, format, export.Options{Title: info.Title})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(reportFlags.out, 0o755); err != nil {
		return fmt.Errorf("can't create output dir: %w", err)
	}
	path := filepath.Join(reportFlags.out, file.Name)
	if err := os.WriteFile(path, file.Content, 0o644); err != nil {
		return fmt.Errorf("can't write export: %w", err)
	}
	slog.Default().Info("report exported",
		slog.String("view", info.Name),
		slog.Int("rows", g.Len()),
		slog.String("path", path),
	)
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
