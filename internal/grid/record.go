package grid

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Header describes one export column.
type Header struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Sortable bool   `json:"sortable"`
}

// Field is one cell of an exported row.
type Field struct {
	Key   string
	Value any
	Text  string
}

// Record is one exported row with fields in column order.
type Record struct {
	Fields []Field
}

// Texts returns the display text of every field in column order.
func (r Record) Texts() []string {
	res := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		res = append(res, f.Text)
	}
	return res
}

// Get returns the field stored under key.
func (r Record) Get(key string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// MarshalJSON writes the record as an object whose keys keep column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(jsonValue(f.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return json.Number(t.String())
	case *decimal.Decimal:
		if t == nil {
			return nil
		}
		return json.Number(t.String())
	case decimal.NullDecimal:
		if !t.Valid {
			return nil
		}
		return json.Number(t.Decimal.String())
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		return t.Format(time.RFC3339)
	}
	return v
}
