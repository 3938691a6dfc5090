package report

import (
	"time"

	"github.com/google/uuid"
)

// ColumnType tells renderers how to format a column.
type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnCount   ColumnType = "count"
	ColumnDecimal ColumnType = "decimal"
	ColumnRate    ColumnType = "rate"
)

// Column describes one output column.
type Column struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Type  ColumnType `json:"type"`
}

// Row holds one value per column. Text cells are strings, counts are ints
// and decimals or rates are float64. A nil cell is a null metric.
type Row []any

// Table is the result of one report evaluation.
type Table struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Columns     []Column  `json:"columns"`
	Rows        []Row     `json:"rows"`
	MinSample   int       `json:"min_sample"`
	Top         int       `json:"top,omitempty"`
	Source      string    `json:"source,omitempty"`
	RunID       uuid.UUID `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(r) {
				m[c.Key] = r[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// Slice returns a shallow copy of t holding rows [offset, offset+limit).
func (t *Table) Slice(offset, limit int) *Table {
	out := *t
	if offset < 0 {
		offset = 0
	}
	if offset > len(t.Rows) {
		offset = len(t.Rows)
	}
	end := len(t.Rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out.Rows = t.Rows[offset:end]
	return &out
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func colText(col, label string) Column    { return Column{Key: col, Label: label, Type: ColumnText} }
func colCount(col, label string) Column   { return Column{Key: col, Label: label, Type: ColumnCount} }
func colDecimal(col, label string) Column { return Column{Key: col, Label: label, Type: ColumnDecimal} }
func colRate(col, label string) Column    { return Column{Key: col, Label: label, Type: ColumnRate} }
