package form

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
)

// DashboardFilter selects the reporting period and optional status.
type DashboardFilter struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status"`
}

func statuses() []any {
	res := []any{"", "all"}
	for _, s := range entity.OrderStatuses {
		res = append(res, string(s))
	}
	return res
}

func (f *DashboardFilter) Validate() error {
	return ValidateStruct(f,
		validation.Field(&f.From, validation.Required, validation.Date(time.DateOnly)),
		validation.Field(&f.To, validation.Required, validation.Date(time.DateOnly)),
		validation.Field(&f.Status, validation.In(statuses()...)),
	)
}
