package ledger

import (
	"slices"
	"strings"
	"time"
)

// Fixed (0-based) column layout of the ledger worksheet.
const (
	ColumnEmail = iota
	ColumnToken
	ColumnExpires
	ColumnQuota
	ColumnEnabled
	ColumnUsed

	columns
)

// TIMESTAMP is the layout of the 'expires' column, formatted in the ledger's time zone with
// the UTC offset so that times in a daylight saving fall-back hour are unambiguous.
const TIMESTAMP = "2006-01-02 15:04:05 -07:00"

// LOCALTIME is the layout of 'expires' cells written without a UTC offset, interpreted in
// the ledger's time zone.
const LOCALTIME = "2006-01-02 15:04:05"

// Header is written to an empty ledger worksheet before the first record.
var Header = []string{"email", "token", "expires", "quota", "enabled", "used"}

// Record is a single access ledger row. Row is the 1-based worksheet row number.
type Record struct {
	Row       int
	Email     string
	Token     string
	ExpiresAt time.Time
	Quota     string
	Enabled   bool
	Used      bool
}

func parseRecord(row int, cells []string, location *time.Location) Record {
	cell := func(ix int) string {
		if ix < len(cells) {
			return strings.TrimSpace(cells[ix])
		}

		return ""
	}

	return Record{
		Row:       row,
		Email:     cell(ColumnEmail),
		Token:     cell(ColumnToken),
		ExpiresAt: parseTimestamp(cell(ColumnExpires), location),
		Quota:     cell(ColumnQuota),
		Enabled:   strings.EqualFold(cell(ColumnEnabled), "TRUE"),
		Used:      strings.EqualFold(cell(ColumnUsed), "TRUE"),
	}
}

// An unparseable (or empty) timestamp yields the zero time, i.e. already expired.
func parseTimestamp(v string, location *time.Location) time.Time {
	if v == "" {
		return time.Time{}
	}

	if t, err := time.Parse(TIMESTAMP, v); err == nil {
		return t
	}

	if t, err := time.ParseInLocation(LOCALTIME, v, location); err == nil {
		return t
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}

	return time.Time{}
}

func formatTimestamp(t time.Time, location *time.Location) string {
	if t.IsZero() {
		return ""
	}

	return t.In(location).Format(TIMESTAMP)
}

// check applies the validity rules in order of precedence: disabled, used, expired.
func (r Record) check(now time.Time) Reason {
	switch {
	case !r.Enabled:
		return UserDisabled

	case r.Used:
		return TokenUsed

	case !now.Before(r.ExpiresAt):
		return TokenExpired

	default:
		return ""
	}
}

// Cells returns the record formatted as a worksheet row.
func (r Record) Cells(location *time.Location) []string {
	row := make([]string, columns)

	row[ColumnEmail] = r.Email
	row[ColumnToken] = r.Token
	row[ColumnExpires] = formatTimestamp(r.ExpiresAt, location)
	row[ColumnQuota] = r.Quota
	row[ColumnEnabled] = flag(r.Enabled)
	row[ColumnUsed] = flag(r.Used)

	return row
}

func flag(b bool) string {
	if b {
		return "TRUE"
	}

	return "FALSE"
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func pad(row []string) []string {
	cells := slices.Clone(row)
	for len(cells) < columns {
		cells = append(cells, "")
	}

	return cells[:columns]
}
