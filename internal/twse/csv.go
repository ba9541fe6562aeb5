package twse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"github.com/guttosm/twpulse/internal/domain/models"
)

// parseCSV reads a TWSE CSV export. Exports may be Big5 encoded, may start with
// title lines, wrap codes as ="0050", end rows with a comma and finish with
// footnotes; all of that is tolerated.
func parseCSV(body []byte) (*models.Table, error) {
	var src io.Reader = bytes.NewReader(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if !utf8.Valid(body) {
		src = transform.NewReader(bytes.NewReader(body), traditionalchinese.Big5.NewDecoder())
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	headerAt := -1
	for i, rec := range records {
		if isHeader(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		// Unknown layout: trust the first non-empty record.
		for i, rec := range records {
			if nonEmpty(rec) > 0 {
				headerAt = i
				break
			}
		}
	}
	if headerAt < 0 {
		return models.NewTable(), nil
	}

	header := trimTrailingEmpty(cleanAll(records[headerAt]))
	t := models.NewTable(header...)
	for _, rec := range records[headerAt+1:] {
		rec = cleanAll(rec)
		// Footnotes are single-cell lines after the data block.
		if nonEmpty(rec) < 2 {
			continue
		}
		row := make([]models.Cell, len(header))
		for i := range header {
			if i < len(rec) && rec[i] != "" {
				row[i] = models.Text(rec[i])
			}
		}
		t.AppendRow(row...)
	}
	return t, nil
}

func isHeader(rec []string) bool {
	for _, f := range rec {
		f = cleanCell(f)
		if strings.Contains(f, "代號") || strings.EqualFold(f, "code") {
			return true
		}
	}
	return false
}

func cleanAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, f := range rec {
		out[i] = cleanCell(f)
	}
	return out
}

func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "=")
	return strings.TrimSpace(strings.Trim(s, `"`))
}

func trimTrailingEmpty(rec []string) []string {
	for len(rec) > 0 && rec[len(rec)-1] == "" {
		rec = rec[:len(rec)-1]
	}
	return rec
}

func nonEmpty(rec []string) int {
	n := 0
	for _, f := range rec {
		if f != "" {
			n++
		}
	}
	return n
}
