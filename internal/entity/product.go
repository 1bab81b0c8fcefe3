package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product represents the product table. Images is stored as a comma separated list.
type Product struct {
	ID            int             `db:"id"`
	Name          string          `db:"name"`
	Images        ImageList       `db:"images"`
	StockQuantity int             `db:"stock_quantity"`
	Price         decimal.Decimal `db:"price"`
	Active        bool            `db:"active"`
}

// Thumbnail returns the first image reference or an empty string.
func (p *Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ImageList is a list of image urls persisted as a comma separated string.
type ImageList []string

// Scan implements sql.Scanner.
func (il *ImageList) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*il = nil
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		*il = nil
		return nil
	}
	*il = splitImages(s)
	return nil
}

func splitImages(s string) ImageList {
	var out ImageList
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
