package writer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/guttosm/twpulse/internal/domain/models"
	"github.com/guttosm/twpulse/internal/fault"
)

var (
	start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)
)

func TestFilename(t *testing.T) {
	if got := Filename("2330.TW", start, &end, "csv"); got != "2330.TW_20250101_20250718.csv" {
		t.Fatalf("got %s", got)
	}
	if got := Filename("AAPL", start, nil, "parquet"); got != "AAPL_20250101_latest.parquet" {
		t.Fatalf("got %s", got)
	}
	if got := MergedFilename("2330.TW", start, &end); got != "2330.TW_MERGED_20250101_20250718.csv" {
		t.Fatalf("got %s", got)
	}
	if got := MarketFlowsFilename(start, nil, "csv"); got != "MARKET_BFI82U_20250101_latest.csv" {
		t.Fatalf("got %s", got)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" CSV "); err != nil || f != FormatCSV {
		t.Fatalf("got %q %v", f, err)
	}
	if _, err := ParseFormat("xlsx"); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func frame(multi bool) *models.PriceFrame {
	f := &models.PriceFrame{
		IndexName: "Date",
		Index:     []time.Time{start, start.AddDate(0, 0, 1)},
	}
	syms := []string{""}
	if multi {
		syms = []string{"2330.TW", "AAPL"}
	}
	for _, s := range syms {
		f.Columns = append(f.Columns, models.FieldKey{Symbol: s, Field: "Close"}, models.FieldKey{Symbol: s, Field: "Volume"})
	}
	for r := range f.Index {
		var row []models.Cell
		for range syms {
			row = append(row, models.Number(100.5+float64(r)), models.Null())
		}
		f.Values = append(f.Values, row)
	}
	return f
}

func TestWriteSymbolFrames_CSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteSymbolFrames(frame(true), []string{"2330.TW", "MISSING", "AAPL"}, dir, start, &end, FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("want 2 files, got %v", paths)
	}
	b, err := os.ReadFile(filepath.Join(dir, "2330.TW_20250101_20250718.csv"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "Date,Close,Volume\n2025-01-01,100.5,\n2025-01-02,101.5,\n"
	if string(b) != want {
		t.Fatalf("csv mismatch:\n%s", b)
	}
}

func TestWriteSymbolFrames_SingleLevelWholeFrame(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteSymbolFrames(frame(false), []string{"2330.TW", "2317.TW"}, dir, start, nil, FormatCSV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 || !strings.HasSuffix(paths[1], "2317.TW_20250101_latest.csv") {
		t.Fatalf("paths=%v", paths)
	}
}

func TestWriteTable_Parquet(t *testing.T) {
	tbl := models.NewTable("Date", "Open", "Adj Close", "code")
	tbl.AppendRow(models.Time(start), models.Number(1000), models.Null(), models.Text("2330"))
	tbl.AppendRow(models.Time(end), models.Null(), models.Number(1.5), models.Null())
	path := filepath.Join(t.TempDir(), "m.parquet")

	if err := WriteTable(tbl, path, FormatParquet); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("PAR1")) || !bytes.HasSuffix(b, []byte("PAR1")) {
		t.Fatal("not a parquet file")
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer func() { _ = fr.Close() }()
	pr, err := reader.NewParquetColumnReader(fr, 1)
	if err != nil {
		t.Fatalf("column reader: %v", err)
	}
	defer pr.ReadStop()
	if n := pr.GetNumRows(); n != 2 {
		t.Fatalf("rows=%d", n)
	}

	want := [][]any{
		{"2025-01-01", "2025-07-18"},
		{1000.0, nil},
		{nil, 1.5},
		{"2330", nil},
	}
	for i, w := range want {
		got, _, _, err := pr.ReadColumnByIndex(int64(i), 2)
		if err != nil {
			t.Fatalf("column %d: %v", i, err)
		}
		if len(got) != len(w) {
			t.Fatalf("column %s: got %v want %v", tbl.Columns[i], got, w)
		}
		for r := range w {
			if got[r] != w[r] {
				t.Fatalf("column %s row %d: got %#v want %#v", tbl.Columns[i], r, got[r], w[r])
			}
		}
	}
}

func TestSchema_Types(t *testing.T) {
	rows := [][]models.Cell{
		{models.Number(1), models.Text("a"), models.Null()},
		{models.Null(), models.Number(2), models.Null()},
	}
	md := schema([]string{"n", "mixed", "empty"}, rows)
	if !strings.Contains(md[0], "DOUBLE") || !strings.Contains(md[1], "UTF8") || !strings.Contains(md[2], "UTF8") {
		t.Fatalf("schema=%v", md)
	}
}

func TestWriteTable_Failures(t *testing.T) {
	tbl := models.NewTable("a")
	if err := WriteTable(tbl, filepath.Join(t.TempDir(), "no", "such", "dir", "x.csv"), FormatCSV); !fault.Is(err, fault.KindOutput) {
		t.Fatalf("want output error, got %v", err)
	}
	if err := WriteTable(tbl, filepath.Join(t.TempDir(), "x.xlsx"), Format("xlsx")); !fault.Is(err, fault.KindOutput) {
		t.Fatalf("want output error, got %v", err)
	}
}
