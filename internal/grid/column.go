// Package grid is a generic tabular view engine: rows of any type plus column
// descriptors go through search, filter and sort into a selectable view.
package grid

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Column describes one field of row type R.
type Column[R any] struct {
	Key      string
	Label    string
	Sortable bool
	// Value returns the raw field used for search, filter, sort and JSON export.
	Value func(R) any
	// Render optionally overrides the display text used by CSV and HTML export.
	Render func(R) string
}

func (c *Column[R]) value(r R) any {
	if c.Value == nil {
		return nil
	}
	return c.Value(r)
}

func (c *Column[R]) text(r R) string {
	if c.Render != nil {
		return c.Render(r)
	}
	return Format(c.value(r))
}

func findColumn[R any](cols []Column[R], key string) (*Column[R], bool) {
	for i := range cols {
		if cols[i].Key == key {
			return &cols[i], true
		}
	}
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// sqlValue unwraps sql.Null* style values. ok is false for nulls.
func sqlValue(v driver.Valuer) (any, bool) {
	val, err := v.Value()
	if err != nil || val == nil {
		return nil, false
	}
	return val, true
}

// Format is the string form of a field value. nil, nil pointers and invalid
// sql.Null* values yield "".
func Format(v any) string {
	if isNil(v) {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case *decimal.Decimal:
		if t == nil {
			return ""
		}
		return t.String()
	case decimal.NullDecimal:
		if !t.Valid {
			return ""
		}
		return t.Decimal.String()
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case driver.Valuer:
		val, ok := sqlValue(t)
		if !ok {
			return ""
		}
		return Format(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return Format(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprint(v)
}

// number converts numeric field values for comparison.
func number(v any) (decimal.Decimal, bool) {
	if isNil(v) {
		return decimal.Zero, false
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case decimal.NullDecimal:
		return t.Decimal, t.Valid
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case driver.Valuer:
		val, ok := sqlValue(t)
		if !ok {
			return decimal.Zero, false
		}
		return number(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		return number(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), true
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(rv.Float()), true
	}
	return decimal.Zero, false
}

func instant(v any) (time.Time, bool) {
	if isNil(v) {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		return *t, true
	case driver.Valuer:
		val, ok := sqlValue(t)
		if !ok {
			return time.Time{}, false
		}
		tm, ok := val.(time.Time)
		return tm, ok
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		return instant(rv.Elem().Interface())
	}
	return time.Time{}, false
}
