package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/jekabolt/grbpwr-crm/internal/grid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int
	Name  string
	Price decimal.Decimal
}

func testTable(rows ...row) *grid.Table[row] {
	return grid.New("top-products", []grid.Column[row]{
		{Key: "id", Label: "ID", Sortable: true, Value: func(r row) any { return r.ID }},
		{Key: "name", Label: "Product", Sortable: true, Value: func(r row) any { return r.Name }},
		{Key: "price", Label: "Price", Sortable: true, Value: func(r row) any { return r.Price },
			Render: func(r row) string { return r.Price.StringFixed(2) }},
	}, rows)
}

var exportTime = time.Date(2025, 1, 8, 15, 4, 5, 0, time.UTC)

func TestCSVRoundTrip(t *testing.T) {
	tbl := testTable(
		row{ID: 1, Name: `Bag, "Deluxe"`, Price: decimal.NewFromInt(300)},
		row{ID: 2, Name: "plain", Price: decimal.RequireFromString("12.5")},
	)

	f, err := Render(tbl, FormatCSV, Options{Now: exportTime})
	require.NoError(t, err)
	assert.Equal(t, "top-products_2025-01-08.csv", f.Name)
	assert.Equal(t, "text/csv; charset=utf-8", f.MIMEType)

	content := string(f.Content)
	require.True(t, strings.HasPrefix(content, "\uFEFF"))
	assert.Contains(t, content, `"Bag, ""Deluxe"""`)
	assert.Contains(t, content, `"2","plain","12.50"`)

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\uFEFF"))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ID", "Product", "Price"},
		{"1", `Bag, "Deluxe"`, "300.00"},
		{"2", "plain", "12.50"},
	}, rows)
}

func TestCSVFollowsView(t *testing.T) {
	tbl := testTable(
		row{ID: 1, Name: "a", Price: decimal.NewFromInt(1)},
		row{ID: 2, Name: "b", Price: decimal.NewFromInt(3)},
		row{ID: 3, Name: "c", Price: decimal.NewFromInt(2)},
	)
	tbl.SetSort(grid.SortState{Key: "price", Direction: grid.Descending})
	tbl.SetFilter("name", "a")
	tbl.SetFilter("name", grid.FilterAll)
	tbl.SetSearch("name", "")

	f, err := Render(tbl, FormatCSV, Options{Now: exportTime})
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(f.Content), "\uFEFF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2", "3", "1"}, []string{rows[1][0], rows[2][0], rows[3][0]})
}

func TestJSON(t *testing.T) {
	tbl := testTable(row{ID: 7, Name: "scarf", Price: decimal.RequireFromString("80.5")})

	f, err := Render(tbl, FormatJSON, Options{Now: exportTime})
	require.NoError(t, err)
	assert.Equal(t, "top-products_2025-01-08.json", f.Name)
	assert.Equal(t, "application/json", f.MIMEType)
	assert.Contains(t, string(f.Content), "\n  {\n    \"id\": 7,")

	var out []map[string]any
	require.NoError(t, json.Unmarshal(f.Content, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "scarf", out[0]["name"])
	assert.Equal(t, 80.5, out[0]["price"])
}

func TestHTML(t *testing.T) {
	tbl := testTable(
		row{ID: 1, Name: "<script>alert(1)</script>", Price: decimal.NewFromInt(1)},
		row{ID: 2, Name: "belt", Price: decimal.NewFromInt(2)},
	)

	f, err := Render(tbl, FormatHTML, Options{Title: "Top products", Now: exportTime})
	require.NoError(t, err)
	assert.Equal(t, "top-products_2025-01-08.html", f.Name)

	doc := string(f.Content)
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>Top products</title>")
	assert.Contains(t, doc, exportTime.Format(time.RFC1123))
	assert.Contains(t, doc, "2 records")
	assert.Contains(t, doc, "<th>Product</th>")
	assert.NotContains(t, doc, "<script>")
	assert.Contains(t, doc, "&lt;script&gt;")
}

func TestEmptyView(t *testing.T) {
	tbl := testTable(row{ID: 1, Name: "a"})
	tbl.SetSearch("name", "zzz")

	for _, format := range []Format{FormatCSV, FormatJSON, FormatHTML} {
		f, err := Render(tbl, format, Options{})
		assert.Nil(t, f)
		assert.True(t, errors.Is(err, gerr.EmptyExportFailure), format)
	}
	f, err := Render(testTable(), FormatCSV, Options{})
	assert.Nil(t, f)
	assert.True(t, errors.Is(err, gerr.EmptyExportFailure))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PRINT")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	_, err = ParseFormat("xlsx")
	assert.True(t, errors.Is(err, gerr.UnsupportedFormat))

	_, err = Render(testTable(row{ID: 1}), Format("xlsx"), Options{})
	assert.True(t, errors.Is(err, gerr.UnsupportedFormat))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "orders_2025-01-08.csv", FileName("orders", FormatCSV, exportTime))
	assert.Equal(t, "top_customers_2025-01-08.json", FileName("top customers", FormatJSON, exportTime))
	assert.Equal(t, "export_2025-01-08.html", FileName(" ", FormatHTML, exportTime))
}
