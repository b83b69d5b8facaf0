package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

// DuckDBSource reads candles out of a DuckDB view layered over a CSV or
// Parquet file. DuckDB does the file parsing; the source only queries.
type DuckDBSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	symbol string
}

// NewDuckDBSource creates a DuckDB-backed candle source. The path is the
// DuckDB database location; ":memory:" works for pure replay use. The
// symbol is stamped onto rows whose file carries no symbol column.
func NewDuckDBSource(path string, symbol string, logger *logger.Logger) (CandleSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	_, err = db.Exec(`
		SET memory_limit='4GB';
		SET threads=4;
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to configure duckdb", err)
	}

	return &DuckDBSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		symbol: symbol,
	}, nil
}

// Initialize implements CandleSource. It builds the candles view over the
// given file, dispatching on the extension.
func (d *DuckDBSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB candle source", zap.String("path", path))

	_, err := d.db.Exec(`DROP VIEW IF EXISTS candles;`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing view", err)
	}

	// CREATE VIEW is not expressible through squirrel, so raw SQL here.
	var query string

	switch {
	case strings.HasSuffix(path, ".parquet"):
		query = fmt.Sprintf(`CREATE VIEW candles AS SELECT * FROM read_parquet('%s');`, path)
	case strings.HasSuffix(path, ".csv"):
		query = fmt.Sprintf(`CREATE VIEW candles AS SELECT * FROM read_csv_auto('%s');`, path)
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported data file '%s': need .csv or .parquet", path)
	}

	_, err = d.db.Exec(query)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to create candles view over '%s'", path)
	}

	return nil
}

// Count implements CandleSource.
func (d *DuckDBSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From("candles")

	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err)
	}

	return count, nil
}

// ReadAll implements CandleSource. Rows stream in ascending time order;
// the iterator stops at the first scan error or when the consumer bails.
func (d *DuckDBSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Candle, error) bool) {
	return func(yield func(types.Candle, error) bool) {
		builder := d.sq.Select("time", "open", "high", "low", "close", "volume").
			From("candles").
			OrderBy("time ASC")

		if start.IsSome() {
			builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
		}

		if end.IsSome() {
			builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
		}

		query, args, err := builder.ToSql()
		if err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build read query", err))

			return
		}

		rows, err := d.db.Query(query, args...)
		if err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query candles", err))

			return
		}

		defer rows.Close()

		for rows.Next() {
			var (
				timestamp                      time.Time
				open, high, low, close, volume float64
			)

			if err := rows.Scan(&timestamp, &open, &high, &low, &close, &volume); err != nil {
				yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan candle row", err))

				return
			}

			candle := types.Candle{
				Time:   timestamp,
				Symbol: d.symbol,
				Open:   open,
				High:   high,
				Low:    low,
				Close:  close,
				Volume: volume,
			}

			if !yield(candle, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(types.Candle{}, errors.Wrap(errors.ErrCodeQueryFailed, "candle row iteration failed", err))
		}
	}
}

// Close implements CandleSource.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}
