package store

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid spreadsheet range")

// Range is a parsed A1 notation reference. Column and Row are 0-based. An unbounded
// reference (e.g. 'Sheet' or 'Sheet!A2:F') has Bounded set to false.
type Range struct {
	Sheet   string
	Column  int
	Row     int
	Bounded bool
}

var plain = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var a1 = regexp.MustCompile(`^(?:'((?:[^']|'')+)'|([^!]+))(?:!([a-zA-Z]+)([0-9]+)(?::([a-zA-Z]+)([0-9]+)?)?)?$`)

// ParseRange parses references of the form 'Sheet', 'Sheet!F3', 'Sheet!B3:F3' and
// 'Quoted Sheet'!B3:F.
func ParseRange(area string) (*Range, error) {
	match := a1.FindStringSubmatch(strings.TrimSpace(area))
	if match == nil {
		return nil, fmt.Errorf("%w '%s'", ErrInvalidRange, area)
	}

	r := Range{
		Sheet: match[2],
	}

	if match[1] != "" {
		r.Sheet = strings.ReplaceAll(match[1], "''", "'")
	}

	if match[3] == "" {
		return &r, nil
	}

	row, err := strconv.Atoi(match[4])
	if err != nil || row < 1 {
		return nil, fmt.Errorf("%w '%s'", ErrInvalidRange, area)
	}

	r.Column = ColumnIndex(match[3])
	r.Row = row - 1
	r.Bounded = true

	return &r, nil
}

// ColumnIndex converts a column letter (A, B, ..., Z, AA, ...) to a 0-based index.
func ColumnIndex(column string) int {
	index := 0
	for _, ch := range strings.ToUpper(column) {
		index = index*26 + int(ch-'A'+1)
	}

	return index - 1
}

// Quote returns the sheet name quoted for use in an A1 reference, if necessary.
func Quote(sheet string) string {
	if plain.MatchString(sheet) {
		return sheet
	}

	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
