// Package export renders a materialized grid view as CSV, JSON or a printable
// HTML document.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/jekabolt/grbpwr-crm/internal/grid"
)

// Format is an export output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates a format name. "print" is an alias of html.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "html", "print":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("format %q: %w", s, gerr.UnsupportedFormat)
}

// MIMEType returns the content type of files in this format.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// Source is a materialized view ready for export.
type Source interface {
	Name() string
	Headers() []grid.Header
	Records() []grid.Record
}

// Options tweaks rendering.
type Options struct {
	// Title of the printable document. Defaults to the source name.
	Title string
	// Now is the export time. Defaults to time.Now.
	Now time.Time
}

// Render exports the current view of src. An empty view fails with
// gerr.EmptyExportFailure and produces no file.
func Render(src Source, format Format, opts Options) (*entity.File, error) {
	records := src.Records()
	if len(records) == 0 {
		return nil, fmt.Errorf("export %s: %w", src.Name(), gerr.EmptyExportFailure)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Title == "" {
		opts.Title = src.Name()
	}

	var (
		content []byte
		err     error
	)
	switch format {
	case FormatCSV:
		content = renderCSV(src.Headers(), records)
	case FormatJSON:
		content, err = renderJSON(records)
	case FormatHTML:
		content, err = renderHTML(opts, src.Headers(), records)
	default:
		return nil, fmt.Errorf("format %q: %w", format, gerr.UnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("can't render %s export of %s: %w", format, src.Name(), err)
	}

	return &entity.File{
		Name:     FileName(src.Name(), format, opts.Now),
		MIMEType: format.MIMEType(),
		Content:  content,
	}, nil
}

// FileName is <name>_<YYYY-MM-DD>.<ext>.
func FileName(name string, format Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", sanitize(name), at.Format("2006-01-02"), format)
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "export"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
