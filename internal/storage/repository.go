package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	pq "github.com/lib/pq"

	"github.com/guttosm/twpulse/internal/domain/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SeriesRepository defines contract for DB operations.
type SeriesRepository interface {
	ReplaceSeries(symbol string, start time.Time, end *time.Time, rows []models.SeriesRow) error
	GetSeries(symbol string, startDate *time.Time, endDate *time.Time) ([]models.SeriesRow, error)
	RecordFetch(entry models.FetchLogEntry) error
	LastFetch(symbol string) (*models.FetchLogEntry, error)
}

type seriesRepository struct {
	db *sql.DB
}

func NewSeriesRepository(db *sql.DB) SeriesRepository {
	return &seriesRepository{db: db}
}

// ReplaceSeries swaps the stored rows of symbol in [start, end] for rows, in a
// single transaction. A nil end clears everything from start onward.
func (r *seriesRepository) ReplaceSeries(symbol string, start time.Time, end *time.Time, rows []models.SeriesRow) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	// Small optimization for bulk load
	if _, err := tx.Exec(`SET LOCAL synchronous_commit = OFF`); err != nil {
		_ = tx.Rollback()
		return err
	}

	del, args := deleteRangeQuery(symbol, start, end)
	if _, err := tx.Exec(del, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	if len(rows) == 0 {
		return tx.Commit()
	}

	stmt, err := tx.Prepare(pq.CopyIn("merged_series", "symbol", "trade_date", "seq", "payload"))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	for _, rec := range rows {
		payload, err := json.Marshal(rec.Values)
		if err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("encode payload: %w", err)
		}
		if _, err := stmt.Exec(symbol, rec.TradeDate, rec.Seq, string(payload)); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return err
		}
	}

	if _, err := stmt.Exec(); err != nil {
		_ = stmt.Close()
		_ = tx.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func deleteRangeQuery(symbol string, start time.Time, end *time.Time) (string, []any) {
	if end == nil {
		return `DELETE FROM merged_series WHERE symbol = $1 AND trade_date >= $2`, []any{symbol, start}
	}
	return `DELETE FROM merged_series WHERE symbol = $1 AND trade_date >= $2 AND trade_date <= $3`, []any{symbol, start, *end}
}

// GetSeries returns the stored rows of symbol ordered by date and sequence.
func (r *seriesRepository) GetSeries(symbol string, startDate *time.Time, endDate *time.Time) ([]models.SeriesRow, error) {
	// $1 is always symbol. Subsequent placeholders depend on provided dates.
	conditions := "symbol = $1"
	args := []any{symbol}
	if startDate != nil {
		conditions += fmt.Sprintf(" AND trade_date >= $%d", len(args)+1)
		args = append(args, *startDate)
	}
	if endDate != nil {
		conditions += fmt.Sprintf(" AND trade_date <= $%d", len(args)+1)
		args = append(args, *endDate)
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT trade_date, seq, payload
		FROM merged_series
		WHERE %s
		ORDER BY trade_date, seq
	`, conditions), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.SeriesRow
	for rows.Next() {
		rec := models.SeriesRow{Symbol: symbol}
		var payload []byte
		if err := rows.Scan(&rec.TradeDate, &rec.Seq, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Values); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordFetch appends an entry to fetch_log.
func (r *seriesRepository) RecordFetch(e models.FetchLogEntry) error {
	var end any
	if e.EndDate != nil {
		end = *e.EndDate
	}
	_, err := r.db.Exec(`
		INSERT INTO fetch_log (run_id, symbol, start_date, end_date, row_count, filename)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.RunID, e.Symbol, e.StartDate, end, e.RowCount, e.Filename)
	return err
}

// LastFetch returns the most recent fetch_log entry of symbol, or nil when none exists.
func (r *seriesRepository) LastFetch(symbol string) (*models.FetchLogEntry, error) {
	e := models.FetchLogEntry{Symbol: symbol}
	var end sql.NullTime
	err := r.db.QueryRow(`
		SELECT run_id, start_date, end_date, row_count, filename, fetched_at
		FROM fetch_log
		WHERE symbol = $1
		ORDER BY fetched_at DESC
		LIMIT 1
	`, symbol).Scan(&e.RunID, &e.StartDate, &end, &e.RowCount, &e.Filename, &e.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if end.Valid {
		e.EndDate = &end.Time
	}
	return &e, nil
}
