package dbtclickhouse

import (
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Column describes one result column: its name and the server-side type
// name (e.g. "UInt64", "String").
type Column struct {
	Name string
	Type string
}

// Table is a materialized statement result: an ordered list of named columns
// and a row-major data payload. Column order and names are preserved exactly
// as the server returned them, and every row has exactly one value per
// column.
type Table struct {
	columns []Column
	rows    [][]any
}

// NewTable builds a table from columns and row-major data. Every row must
// have the same arity as the column list; a statement that returned no rows
// yields a zero-row table with the declared columns intact.
func NewTable(columns []Column, rows [][]any) (*Table, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values for %d columns", ErrRuntime, i, len(row), len(columns))
		}
	}
	return &Table{columns: columns, rows: rows}, nil
}

// Columns returns the ordered column descriptors.
func (t *Table) Columns() []Column {
	return t.columns
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Rows returns the row-major data payload.
func (t *Table) Rows() [][]any {
	return t.rows
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.rows)
}

// NumColumns returns the number of declared columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// materializeRows drains driver rows into a Table. Values are scanned into
// the driver's declared scan types; a result with zero rows still carries
// the declared columns.
func materializeRows(rows driver.Rows) (*Table, error) {
	types := rows.ColumnTypes()
	columns := make([]Column, len(types))
	for i, ct := range types {
		columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	data := make([][]any, 0)
	for rows.Next() {
		dest := make([]any, len(types))
		for i, ct := range types {
			if st := ct.ScanType(); st != nil {
				dest[i] = reflect.New(st).Interface()
			} else {
				dest[i] = new(any)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]any, len(types))
		for i := range dest {
			row[i] = reflect.ValueOf(dest[i]).Elem().Interface()
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Table{columns: columns, rows: data}, nil
}
