// Package report flattens visitor listings into CSV line-listing exports.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"visitlog/internal/visitor"
)

// columns are the stored field keys in export order; headers are derived by
// displayName so the CSV shows capitalized camel-case labels.
var columns = []string{
	"id", "identification", "firstname", "surname", "birth_date", "age",
	"gender", "checkin", "checkout", "stay", "purpose", "where_from",
	"where_to", "created_at", "updated_at",
}

// Write renders records as CSV. The header set is the union of row keys; with
// the fixed record shape that is the full column list.
func Write(w io.Writer, records []visitor.Record) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(columns))
	for i, key := range columns {
		header[i] = displayName(key)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		if err := cw.Write(row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(rec visitor.Record) []string {
	age := ""
	if rec.Age != nil {
		age = strconv.Itoa(*rec.Age)
	}
	checkout := ""
	if rec.Checkout != nil {
		checkout = formatTime(*rec.Checkout)
	}
	return []string{
		rec.ID, rec.Identification, rec.Firstname, rec.Surname, rec.BirthDate,
		age, rec.Gender, formatTime(rec.Checkin), checkout, rec.Stay,
		rec.Purpose, rec.WhereFrom, rec.WhereTo,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// displayName turns a snake_case key into a capitalized camel-case label,
// e.g. "where_from" -> "WhereFrom".
func displayName(key string) string {
	parts := strings.Split(key, "_")
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
