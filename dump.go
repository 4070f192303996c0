package dbtclickhouse

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/xuri/excelize/v2"
)

// DumpTable exports a materialized result table to a file. The basePath is
// the destination without extension; the format and compression extensions
// from the options are appended (e.g. "out/result" becomes
// "out/result.csv.gz").
//
// By default the table is written as CSV without compression.
func DumpTable(t *Table, basePath string, opts ...DumpOptions) error {
	options := NewDumpOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.Format.isBinary() && options.Compression != CompressionNone {
		return fmt.Errorf("stream compression is not supported for %s output", options.Format)
	}

	path := basePath + options.FileExtension()
	switch options.Format {
	case OutputFormatCSV, OutputFormatTSV:
		return dumpDelimited(t, path, options)
	case OutputFormatParquet:
		return dumpParquet(t, path)
	case OutputFormatXLSX:
		return dumpXLSX(t, path)
	default:
		return fmt.Errorf("unsupported output format: %v", options.Format)
	}
}

// dumpDelimited writes the table as CSV or TSV, optionally compressed.
func dumpDelimited(t *Table, path string, options DumpOptions) error {
	file, err := os.Create(path) //nolint:gosec // User-provided path is necessary for export
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	writer, finish, err := compressionWriter(file, options.Compression)
	if err != nil {
		_ = file.Close()
		return err
	}

	csvWriter := csv.NewWriter(writer)
	if options.Format == OutputFormatTSV {
		csvWriter.Comma = '\t'
	}

	writeErr := func() error {
		if err := csvWriter.Write(t.ColumnNames()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		record := make([]string, t.NumColumns())
		for _, row := range t.Rows() {
			for i, value := range row {
				record[i] = formatValue(value)
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
		csvWriter.Flush()
		return csvWriter.Error()
	}()

	if err := finish(); err != nil && writeErr == nil {
		writeErr = err
	}
	if err := file.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	return writeErr
}

// dumpParquet writes the table as a Parquet file. Column types are chosen
// from the data: a column whose non-nil values are uniformly integer, float,
// or boolean keeps that type; everything else is written as UTF-8 strings.
func dumpParquet(t *Table, path string) error {
	fields := make([]arrow.Field, t.NumColumns())
	for i, col := range t.Columns() {
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     arrowColumnType(t, i),
			Nullable: true,
		}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for _, row := range t.Rows() {
		for i, value := range row {
			appendArrowValue(builder.Field(i), value)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	file, err := os.Create(path) //nolint:gosec // User-provided path is necessary for export
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	writer, err := pqarrow.NewFileWriter(schema, file, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	writeErr := writer.Write(record)
	if err := writer.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if err := file.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	return writeErr
}

// dumpXLSX writes the table as a single-sheet Excel workbook.
func dumpXLSX(t *Table, path string) error {
	workbook := excelize.NewFile()
	defer func() {
		_ = workbook.Close()
	}()

	sheet := workbook.GetSheetName(0)

	header := make([]any, t.NumColumns())
	for i, name := range t.ColumnNames() {
		header[i] = name
	}
	if err := workbook.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for rowIdx, row := range t.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		cells := make([]any, len(row))
		for i, value := range row {
			cells[i] = xlsxCellValue(value)
		}
		if err := workbook.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return workbook.SaveAs(path)
}

// formatValue renders one result cell as text for delimited output.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// xlsxCellValue maps a result cell onto a type excelize writes natively,
// falling back to text for everything exotic.
func xlsxCellValue(value any) any {
	switch value.(type) {
	case nil:
		return ""
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return value
	default:
		return formatValue(value)
	}
}

// arrowColumnType picks the arrow type for one table column by scanning its
// values. Mixed or exotic columns degrade to UTF-8 strings.
func arrowColumnType(t *Table, col int) arrow.DataType {
	var intSeen, floatSeen, boolSeen, otherSeen bool
	for _, row := range t.Rows() {
		switch row[col].(type) {
		case nil:
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			intSeen = true
		case float32, float64:
			floatSeen = true
		case bool:
			boolSeen = true
		default:
			otherSeen = true
		}
	}
	switch {
	case otherSeen:
		return arrow.BinaryTypes.String
	case boolSeen && !intSeen && !floatSeen:
		return arrow.FixedWidthTypes.Boolean
	case floatSeen && !boolSeen:
		return arrow.PrimitiveTypes.Float64
	case intSeen && !boolSeen && !floatSeen:
		return arrow.PrimitiveTypes.Int64
	default:
		return arrow.BinaryTypes.String
	}
}

// appendArrowValue appends one cell to the column's builder, coercing to the
// builder's type.
func appendArrowValue(builder array.Builder, value any) {
	if value == nil {
		builder.AppendNull()
		return
	}
	switch b := builder.(type) {
	case *array.Int64Builder:
		if v, ok := toInt64(value); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	case *array.Float64Builder:
		if v, ok := toFloat64(value); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	case *array.StringBuilder:
		b.Append(formatValue(value))
	default:
		builder.AppendNull()
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		if i, ok := toInt64(value); ok {
			return float64(i), true
		}
		return 0, false
	}
}
