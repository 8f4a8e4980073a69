package model

import "strings"

const (
	// ColumnCompanyName identifies a company row.
	ColumnCompanyName = "Company Name"

	// ColumnHomepage is written by the homepages stage and read by profiles.
	ColumnHomepage = "Homepage"

	// ColumnDomain is written by the profiles stage and read by features.
	ColumnDomain = "domain"

	// SentinelGrandTotal marks spreadsheet summary rows that are not companies.
	SentinelGrandTotal = "Grand Total"
)

// Row is an ordered mapping from column name to cell value. Columns are
// only ever appended, never removed.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow builds a row from a header and a record. Short records are padded
// with empty strings; extra cells beyond the header are dropped.
func NewRow(header, record []string) *Row {
	r := &Row{
		keys:   make([]string, 0, len(header)),
		values: make(map[string]string, len(header)),
	}
	for i, col := range header {
		v := ""
		if i < len(record) {
			v = record[i]
		}
		r.Set(col, v)
	}
	return r
}

// Get returns the value for col, or "" when the column is absent.
func (r *Row) Get(col string) string {
	return r.values[col]
}

// Has reports whether col is present.
func (r *Row) Has(col string) bool {
	_, ok := r.values[col]
	return ok
}

// Set assigns a value, appending the column when it is new.
func (r *Row) Set(col, value string) {
	if _, ok := r.values[col]; !ok {
		r.keys = append(r.keys, col)
	}
	r.values[col] = value
}

// Keys returns the columns in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Values projects the row onto header. Columns the row lacks become "".
func (r *Row) Values(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = r.values[col]
	}
	return out
}

// CompanyName returns the trimmed Company Name cell.
func (r *Row) CompanyName() string {
	return strings.TrimSpace(r.Get(ColumnCompanyName))
}

// IsSentinel reports whether the row is a "Grand Total" summary row.
func (r *Row) IsSentinel() bool {
	return r.CompanyName() == SentinelGrandTotal
}
