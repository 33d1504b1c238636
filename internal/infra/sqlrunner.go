package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLExecutor is the subset of pgx used by the archive and credentials store.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Every statement in sqlinline starts with a "--sql <uuid>" line so that
// log lines can be traced back to the query that produced them.
var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var (
	errEmptyQuery    = errors.New("sql: empty query")
	errMissingMarker = errors.New("sql: marker missing or invalid")
)

// SQLRunner executes marked statements against a pool and logs each one
// with its marker and latency.
type SQLRunner struct {
	pool   *pgxpool.Pool
	logger *Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger *Logger) *SQLRunner {
	if logger == nil {
		logger = NopLogger()
	}
	return &SQLRunner{pool: pool, logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, stmt, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", marker).Dur("elapsed", time.Since(start)).Msg("sql exec failed")
		return tag, err
	}
	r.logger.Debug().Str("sql", marker).Int64("rows", tag.RowsAffected()).Dur("elapsed", time.Since(start)).Msg("sql exec")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, stmt, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return loggingRow{row: r.pool.QueryRow(ctx, stmt, args...), logger: r.logger, marker: marker, start: time.Now()}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, stmt, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", marker).Dur("elapsed", time.Since(start)).Msg("sql query failed")
		return nil, err
	}
	return loggingRows{Rows: rows, logger: r.logger, marker: marker, start: start}, nil
}

type loggingRow struct {
	row    pgx.Row
	logger *Logger
	marker string
	start  time.Time
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	switch {
	case err == nil:
		l.logger.Debug().Str("sql", l.marker).Dur("elapsed", time.Since(l.start)).Msg("sql query_row")
	case IsNoRows(err):
		l.logger.Debug().Str("sql", l.marker).Msg("sql query_row: no rows")
	default:
		l.logger.Error().Err(err).Str("sql", l.marker).Msg("sql scan failed")
	}
	return err
}

type loggingRows struct {
	pgx.Rows
	logger *Logger
	marker string
	start  time.Time
}

func (l loggingRows) Close() {
	l.Rows.Close()
	l.logger.Debug().Str("sql", l.marker).Dur("elapsed", time.Since(l.start)).Msg("sql query")
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

// extractMarker splits a marked statement into its uuid and the SQL body.
func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errEmptyQuery
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)
	if !markerRegexp.MatchString(first) {
		return "", "", errMissingMarker
	}
	body := strings.TrimSpace(rest)
	if body == "" {
		return "", "", errEmptyQuery
	}
	return strings.TrimPrefix(first, "--sql "), body, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
