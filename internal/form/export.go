package form

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ExportRequest is the query of an export call.
type ExportRequest struct {
	Format  string `json:"format"`
	Deliver string `json:"deliver"`
}

// Validate checks the format name and that deliver, when set, names one of
// the configured channels.
func (r *ExportRequest) Validate(deliveries []string) error {
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	known := make([]any, 0, len(deliveries))
	for _, d := range deliveries {
		known = append(known, d)
	}
	return ValidateStruct(r,
		validation.Field(&r.Format, validation.Required, validation.In("csv", "json", "html", "print")),
		validation.Field(&r.Deliver, validation.In(known...)),
	)
}
