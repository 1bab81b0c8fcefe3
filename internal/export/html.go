package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/grid"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

var printTemplate = template.Must(template.ParseFS(templatesFS, "templates/print.gohtml"))

type printData struct {
	Title       string
	GeneratedAt string
	Total       int
	Headers     []grid.Header
	Rows        [][]string
}

func renderHTML(opts Options, headers []grid.Header, records []grid.Record) ([]byte, error) {
	data := printData{
		Title:       opts.Title,
		GeneratedAt: opts.Now.Format(time.RFC1123),
		Total:       len(records),
		Headers:     headers,
		Rows:        make([][]string, 0, len(records)),
	}
	for _, r := range records {
		data.Rows = append(data.Rows, r.Texts())
	}

	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
