package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process row store with the same A1 addressing semantics as a
// Google Sheets worksheet. It is used for tests and for running the service without
// a spreadsheet.
type Memory struct {
	sheet string
	rows  [][]string
	sync.RWMutex
}

func NewMemory(sheet string, rows ...[]string) *Memory {
	m := Memory{
		sheet: sheet,
		rows:  [][]string{},
	}

	for _, row := range rows {
		m.rows = append(m.rows, slices.Clone(row))
	}

	return &m
}

func (m *Memory) Sheet() string {
	return m.sheet
}

func (m *Memory) ReadAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.RLock()
	defer m.RUnlock()

	return m.snapshot(), nil
}

func (m *Memory) UpdateRange(ctx context.Context, area string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r, err := ParseRange(area)
	if err != nil {
		return err
	} else if !strings.EqualFold(r.Sheet, m.sheet) {
		return fmt.Errorf("unknown worksheet '%s'", r.Sheet)
	}

	m.Lock()
	defer m.Unlock()

	for i, values := range rows {
		row := r.Row + i
		for len(m.rows) <= row {
			m.rows = append(m.rows, []string{})
		}

		for j, v := range values {
			column := r.Column + j
			for len(m.rows[row]) <= column {
				m.rows[row] = append(m.rows[row], "")
			}

			m.rows[row][column] = v
		}
	}

	return nil
}

func (m *Memory) AppendRow(ctx context.Context, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.Lock()
	defer m.Unlock()

	m.rows = append(m.rows, slices.Clone(row))

	return nil
}

// Rows returns a copy of the current worksheet contents.
func (m *Memory) Rows() [][]string {
	m.RLock()
	defer m.RUnlock()

	return m.snapshot()
}

func (m *Memory) snapshot() [][]string {
	rows := make([][]string, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, slices.Clone(row))
	}

	return rows
}
