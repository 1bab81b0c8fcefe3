package admin

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"log/slog"

	"github.com/starfederation/datastar-go/datastar"
)

var statusTemplate = template.Must(template.New("status").Parse(
	`<div id="dashboard-status" data-state="{{.State}}">` +
		`{{if .LastError}}<span class="error">{{.LastError}}</span>{{else if .ComputedAt}}Updated {{.ComputedAt.Format "2006-01-02 15:04:05"}}{{else}}Computing&hellip;{{end}}` +
		`</div>`))

// Stream pushes the dashboard as datastar signals, once on connect and again
// after every finished recomputation, until the client goes away.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := s.ctrl.Subscribe()
	defer unsubscribe()

	sse := datastar.NewSSE(w, r)
	if err := s.push(sse); err != nil {
		slog.Default().ErrorContext(r.Context(), "can't push dashboard",
			slog.String("err", err.Error()),
		)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := s.push(sse); err != nil {
				slog.Default().DebugContext(r.Context(), "dashboard stream closed",
					slog.String("err", err.Error()),
				)
				return
			}
		}
	}
}

func (s *Server) push(sse *datastar.ServerSentEventGenerator) error {
	d := s.dashboard()
	signals, err := json.Marshal(map[string]any{"dashboard": d})
	if err != nil {
		return fmt.Errorf("can't marshal dashboard: %w", err)
	}
	if err := sse.PatchSignals(signals); err != nil {
		return err
	}
	var b strings.Builder
	if err := statusTemplate.Execute(&b, d); err != nil {
		return fmt.Errorf("can't render status: %w", err)
	}
	return sse.PatchElements(b.String())
}
