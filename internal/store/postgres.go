package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so it can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	sqlCreateReports = `
        CREATE TABLE IF NOT EXISTS schema_reports (
            id          TEXT PRIMARY KEY,
            url         TEXT NOT NULL UNIQUE,
            note        TEXT NOT NULL DEFAULT '',
            reported_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlInsertReport = `
        INSERT INTO schema_reports (id, url, note, reported_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (url) DO NOTHING;
    `
	sqlSelectReportByURL = `
        SELECT id, url, note, reported_at FROM schema_reports WHERE url = $1;
    `
	sqlSelectReports = `
        SELECT id, url, note, reported_at FROM schema_reports ORDER BY reported_at ASC, id ASC;
    `
)

// PostgresStore keeps reports in the schema_reports table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres verifies the connection and makes sure the table exists.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateReports); err != nil {
		return nil, fmt.Errorf("failed to create schema_reports table: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("store")}, nil
}

// Connect opens a pgx pool for url and returns a store over it along with a
// function that closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, r Report) (Report, bool, error) {
	r, err := prepare(r)
	if err != nil {
		return Report{}, false, err
	}

	tag, err := s.pool.Exec(ctx, sqlInsertReport, r.ID, r.URL, r.Note, r.ReportedAt)
	if err != nil {
		return Report{}, false, fmt.Errorf("failed to insert report: %w", err)
	}
	if tag.RowsAffected() == 1 {
		s.log.Info("Schema candidate stored.", zap.String("url", r.URL), zap.String("id", r.ID))
		return r, true, nil
	}

	var existing Report
	err = s.pool.QueryRow(ctx, sqlSelectReportByURL, r.URL).Scan(&existing.ID, &existing.URL, &existing.Note, &existing.ReportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, false, fmt.Errorf("report for %s conflicted but could not be read back", r.URL)
	}
	if err != nil {
		return Report{}, false, fmt.Errorf("failed to read existing report: %w", err)
	}
	return existing, false, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Report, error) {
	rows, err := s.pool.Query(ctx, sqlSelectReports)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.URL, &r.Note, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return reports, nil
}
