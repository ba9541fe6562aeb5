package writer

import (
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"github.com/guttosm/twpulse/internal/domain/models"
)

// writeParquet stores every column as OPTIONAL so nulls survive. Columns whose
// non-null cells are all numeric become DOUBLE; the rest are UTF8 text.
func writeParquet(path string, header []string, rows [][]models.Cell) error {
	if len(header) == 0 {
		return fmt.Errorf("parquet needs at least one column")
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	pw, err := pqwriter.NewCSVWriter(schema(header, rows), fw, 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		rec := make([]*string, len(header))
		for i, c := range row {
			if c.IsNull() {
				continue
			}
			s := c.String()
			rec[i] = &s
		}
		if err := pw.WriteString(rec); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("finalize parquet: %w", err)
	}
	return fw.Close()
}

func schema(header []string, rows [][]models.Cell) []string {
	md := make([]string, len(header))
	for i, name := range header {
		name = strings.NewReplacer(",", "_", "=", "_").Replace(name)
		if numericColumn(rows, i) {
			md[i] = fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name)
		} else {
			md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
		}
	}
	return md
}

func numericColumn(rows [][]models.Cell, col int) bool {
	seen := false
	for _, row := range rows {
		c := row[col]
		if c.IsNull() {
			continue
		}
		if !c.Num.Valid {
			return false
		}
		seen = true
	}
	return seen
}
