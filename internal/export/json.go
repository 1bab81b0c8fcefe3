package export

import (
	"encoding/json"

	"github.com/jekabolt/grbpwr-crm/internal/grid"
)

func renderJSON(records []grid.Record) ([]byte, error) {
	return json.MarshalIndent(records, "", "  ")
}
