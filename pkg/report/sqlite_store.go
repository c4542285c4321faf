package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // Register SQLite3 driver
)

// SQLiteStore keeps reports in a local SQLite file. Report HTML is stored
// gzip-compressed and the chart list msgpack-encoded.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// WAL lets readers proceed while a report is being written
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			content_compressed BLOB,
			charts BLOB,
			company_id TEXT,
			user_id TEXT,
			model TEXT,
			input_tokens INTEGER DEFAULT 0,
			output_tokens INTEGER DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_user_created ON reports(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, r *Report) error {
	content, chartData, err := encodeReport(r)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, query, content_compressed, charts, company_id, user_id, model, input_tokens, output_tokens, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Query, content, chartData, r.CompanyID, r.UserID, r.Model,
		r.Usage.InputTokens, r.Usage.OutputTokens, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, query, content_compressed, charts, company_id, user_id, model, input_tokens, output_tokens, created_at
		FROM reports WHERE id = ?
	`, id)

	r, err := scanReport(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, content_compressed, charts, company_id, user_id, model, input_tokens, output_tokens, created_at
		FROM reports
		WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, userID, userID, limit)
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

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Driver() string { return "sqlite" }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeReport(r *Report) ([]byte, []byte, error) {
	if r == nil || r.ID == "" {
		return nil, nil, errors.New("report id is required")
	}
	content, err := CompressText(r.Content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress report content: %w", err)
	}
	chartData, err := encodeCharts(r.Charts)
	if err != nil {
		return nil, nil, err
	}
	return content, chartData, nil
}

// scanReport reads one row in the column order used by every SELECT above
func scanReport(scan func(dest ...any) error) (*Report, error) {
	var (
		r         Report
		content   []byte
		chartData []byte
		companyID sql.NullString
		userID    sql.NullString
		model     sql.NullString
		createdAt time.Time
		inTokens  int
		outTokens int
	)
	if err := scan(&r.ID, &r.Query, &content, &chartData, &companyID, &userID, &model, &inTokens, &outTokens, &createdAt); err != nil {
		return nil, err
	}
	return hydrateReport(r, content, chartData, companyID.String, userID.String, model.String, inTokens, outTokens, createdAt)
}

func hydrateReport(r Report, content, chartData []byte, companyID, userID, model string, inTokens, outTokens int, createdAt time.Time) (*Report, error) {
	text, err := DecompressText(content)
	if err != nil {
		return nil, err
	}
	list, err := decodeCharts(chartData)
	if err != nil {
		return nil, err
	}

	r.Content = text
	r.Charts = list
	r.CompanyID = companyID
	r.UserID = userID
	r.Model = model
	r.Usage.InputTokens = inTokens
	r.Usage.OutputTokens = outTokens
	r.CreatedAt = createdAt.UTC()
	return &r, nil
}
