package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps reports in Postgres with the same encoding as SQLiteStore
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and creates the reports table if needed
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	ps := &PostgresStore{DB: db}
	if err := ps.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return ps, nil
}

func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := ps.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			content_compressed BYTEA,
			charts BYTEA,
			company_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reports_user_created ON reports(user_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Create(ctx context.Context, r *Report) error {
	content, chartData, err := encodeReport(r)
	if err != nil {
		return err
	}

	_, err = ps.DB.Exec(ctx, `
		INSERT INTO reports (id, query, content_compressed, charts, company_id, user_id, model, input_tokens, output_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.Query, content, chartData, r.CompanyID, r.UserID, r.Model,
		r.Usage.InputTokens, r.Usage.OutputTokens, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Get(ctx context.Context, id string) (*Report, error) {
	row := ps.DB.QueryRow(ctx, `
		SELECT id, query, content_compressed, charts, company_id, user_id, model, input_tokens, output_tokens, created_at
		FROM reports WHERE id = $1
	`, id)

	r, err := scanReport(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return r, nil
}

func (ps *PostgresStore) List(ctx context.Context, userID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := ps.DB.Query(ctx, `
		SELECT id, query, content_compressed, charts, company_id, user_id, model, input_tokens, output_tokens, created_at
		FROM reports
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY created_at DESC, id ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func (ps *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := ps.DB.QueryRow(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

func (ps *PostgresStore) Driver() string { return "postgres" }

func (ps *PostgresStore) Close() error {
	ps.DB.Close()
	return nil
}
