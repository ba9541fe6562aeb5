// Package writer renders tables to per-symbol CSV or Parquet files.
package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
)

// Format is an output file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

const (
	fileDate   = "20060102"
	openEnd    = "latest"
	defaultIdx = "index"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", fault.New(fault.KindValidation, "writer.ParseFormat", "unsupported file format %q", s)
	}
}

// Filename returns {symbol}_{YYYYMMDD}_{YYYYMMDD|latest}.{ext}.
func Filename(symbol string, start time.Time, end *time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", symbol, start.Format(fileDate), endPart(end), ext)
}

// MergedFilename names the merged price/auxiliary artifact of symbol.
func MergedFilename(symbol string, start time.Time, end *time.Time) string {
	return Filename(symbol+"_MERGED", start, end, string(FormatCSV))
}

// MarketFlowsFilename names the market-wide BFI82U artifact.
func MarketFlowsFilename(start time.Time, end *time.Time, ext string) string {
	return Filename("MARKET_BFI82U", start, end, ext)
}

func endPart(end *time.Time) string {
	if end == nil {
		return openEnd
	}
	return end.Format(fileDate)
}

// WriteSymbolFrames writes one file per symbol found in frame and returns the
// written paths. A single-level frame is written whole for every symbol;
// symbols missing from a grouped frame are skipped.
func WriteSymbolFrames(frame *models.PriceFrame, symbols []string, dir string, start time.Time, end *time.Time, format Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fault.Wrap(fault.KindOutput, "writer.WriteSymbolFrames", err)
	}
	var written []string
	for _, sym := range symbols {
		t, ok := frame.Flatten(sym)
		if !ok {
			continue
		}
		path := filepath.Join(dir, Filename(sym, start, end, string(format)))
		if err := WriteTable(t, path, format); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteTable writes t to path, creating or overwriting it. An index, when
// present, becomes the first column.
func WriteTable(t *models.Table, path string, format Format) error {
	header, rows := materialize(t)
	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(path, header, rows)
	case FormatParquet:
		err = writeParquet(path, header, rows)
	default:
		err = fmt.Errorf("unsupported file format %q", format)
	}
	if err != nil {
		return fault.Wrap(fault.KindOutput, "writer.WriteTable", fmt.Errorf("failed to write %s: %w", path, err))
	}
	return nil
}

// materialize flattens t into a header and rows of cells with the index first.
func materialize(t *models.Table) ([]string, [][]models.Cell) {
	if t == nil {
		return nil, nil
	}
	if !t.HasIndex() {
		rows := make([][]models.Cell, len(t.Rows))
		for r := range t.Rows {
			rows[r] = rowOf(t, r)
		}
		return t.Columns, rows
	}
	name := t.IndexName
	if name == "" {
		name = defaultIdx
	}
	header := append([]string{name}, t.Columns...)
	rows := make([][]models.Cell, len(t.Rows))
	for r := range t.Rows {
		rows[r] = append([]models.Cell{models.Time(t.Index[r])}, rowOf(t, r)...)
	}
	return header, rows
}

func rowOf(t *models.Table, r int) []models.Cell {
	out := make([]models.Cell, len(t.Columns))
	copy(out, t.Rows[r])
	return out
}

func writeCSV(path string, header []string, rows [][]models.Cell) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return err
	}
	rec := make([]string, len(header))
	for _, row := range rows {
		for i, c := range row {
			rec[i] = c.String()
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
