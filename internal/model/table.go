// Package model defines the attribute records, geometry features and report
// bundles shared by the loaders, the join engine and the exporters.
package model

import (
	"fmt"
	"time"
)

// Record is one attribute row keyed by column name. Values are nil (missing),
// string (raw cell text) or time.Time (normalized date columns).
type Record map[string]any

// Get returns the value of col and whether the column exists in the record.
func (r Record) Get(col string) (any, bool) {
	v, ok := r[col]
	return v, ok
}

// Text returns the value of col as text; missing values return "".
func (r Record) Text(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}

// Table is an immutable, ordered collection of records sharing one schema.
type Table struct {
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.Records) }

// Has reports whether col is part of the table schema.
func (t Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Column returns every value of col in record order.
func (t Table) Column(col string) []any {
	out := make([]any, len(t.Records))
	for i, r := range t.Records {
		out[i] = r[col]
	}
	return out
}

// Empty reports whether the table has no rows or no columns.
func (t Table) Empty() bool {
	return len(t.Records) == 0 || len(t.Columns) == 0
}

// Section is one titled table of a report.
type Section struct {
	Title string
	Table Table
}

// Bundle is the ordered set of report sections handed to an export writer.
type Bundle []Section
