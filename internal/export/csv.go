package export

import (
	"bytes"
	"strings"

	"github.com/jekabolt/grbpwr-crm/internal/grid"
)

const bom = "\uFEFF"

// renderCSV quotes every field and doubles embedded quotes. encoding/csv only
// quotes when needed, so rows are written by hand.
func renderCSV(headers []grid.Header, records []grid.Record) []byte {
	var buf bytes.Buffer
	buf.WriteString(bom)

	labels := make([]string, 0, len(headers))
	for _, h := range headers {
		labels = append(labels, h.Label)
	}
	writeCSVRow(&buf, labels)
	for _, r := range records {
		writeCSVRow(&buf, r.Texts())
	}
	return buf.Bytes()
}

func writeCSVRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(quoteCSV(f))
	}
	buf.WriteString("\r\n")
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
