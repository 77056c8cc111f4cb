package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// MakeTSV writes the ledger worksheet rows to a TSV file. The worksheet header is replaced
// with the canonical header, rows without an email address are omitted and the records are
// rewritten in canonical form, with expiry times in 'location'. An unparseable expiry is
// written as blank.
func MakeTSV(f io.Writer, rows [][]string, location *time.Location) error {
	if len(rows) == 0 {
		return fmt.Errorf("empty sheet")
	}

	if len(rows[0]) < columns {
		return fmt.Errorf("missing/invalid header row (expected %v columns, got %v)", columns, len(rows[0]))
	}

	records := [][]string{}
	for _, record := range parseRecords(rows, location) {
		if record.Email == "" {
			continue
		}

		records = append(records, record.Cells(location))
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(Header); err != nil {
		return err
	}

	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}

// ParseTSV reads a ledger TSV file, returning the header and records as worksheet rows.
// Records without a valid email address are skipped and a duplicated email address is
// an error.
func ParseTSV(f io.Reader) ([][]string, error) {
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("TSV file is empty")
	}

	if len(records[0]) < columns {
		return nil, fmt.Errorf("TSV file missing header (expected %v columns, got %v)", columns, len(records[0]))
	}

	rows := [][]string{Header}
	emails := map[string]bool{}

	for _, record := range records[1:] {
		row := pad(record)
		for i, v := range row {
			row[i] = strings.TrimSpace(v)
		}

		email := normalise(row[ColumnEmail])
		if !strings.Contains(email, "@") {
			continue
		}

		if emails[email] {
			return nil, fmt.Errorf("duplicate email address '%s'", row[ColumnEmail])
		}

		emails[email] = true
		row[ColumnEnabled] = flag(strings.EqualFold(row[ColumnEnabled], "TRUE"))
		row[ColumnUsed] = flag(strings.EqualFold(row[ColumnUsed], "TRUE"))

		rows = append(rows, row)
	}

	return rows, nil
}
