package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	contract_address TEXT PRIMARY KEY,
	ticker           TEXT NOT NULL,
	chain            TEXT NOT NULL,
	final_score      REAL NOT NULL,
	final_assessment TEXT NOT NULL,
	report           TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tokens (
	contract_address TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	ticker           TEXT NOT NULL,
	analysis_exists  INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_chain ON reports(chain);
CREATE INDEX IF NOT EXISTS idx_reports_assessment ON reports(final_assessment);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
CREATE INDEX IF NOT EXISTS idx_tokens_ticker ON tokens(ticker);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteOnce inserts the report, failing with ErrAlreadyPersisted if any
// report exists for the contract address. The conflict check and the
// insert are a single statement, so concurrent writers cannot both win.
func (s *SQLiteStore) WriteOnce(ctx context.Context, report *model.Report) error {
	if err := report.Complete(); err != nil {
		return err
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (contract_address, ticker, chain, final_score, final_assessment, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (contract_address) DO NOTHING`,
		report.ContractAddress, report.TokenTicker, string(report.Chain),
		report.FinalScore, string(report.FinalAssessment), string(reportJSON),
		report.Timestamp.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert report %s", report.ContractAddress)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrAlreadyPersisted
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, contractAddress string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE contract_address = ?`,
		contractAddress,
	)

	var reportJSON string
	err := row.Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", contractAddress)
	}

	var r model.Report
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	return &r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT report FROM reports WHERE 1=1`
	var args []any

	if filter.Chain != "" {
		query += ` AND chain = ?`
		args = append(args, string(filter.Chain))
	}
	if filter.Assessment != "" {
		query += ` AND final_assessment = ?`
		args = append(args, string(filter.Assessment))
	}
	if filter.SortByScore {
		query += ` ORDER BY final_score DESC`
	} else {
		query += ` ORDER BY created_at DESC`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		var r model.Report
		if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

// SaveToken upserts a registry entry. Unlike reports, registry entries are
// updatable: a later analysis flips analysis_exists.
func (s *SQLiteStore) SaveToken(ctx context.Context, token model.Token) error {
	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (contract_address, name, ticker, analysis_exists, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (contract_address) DO UPDATE SET
		   name = excluded.name,
		   ticker = excluded.ticker,
		   analysis_exists = excluded.analysis_exists`,
		token.ContractAddress, token.Name, token.Ticker, token.AnalysisExists, createdAt,
	)
	return eris.Wrapf(err, "sqlite: save token %s", token.ContractAddress)
}

func (s *SQLiteStore) GetToken(ctx context.Context, contractAddress string) (*model.Token, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT contract_address, name, ticker, analysis_exists, created_at FROM tokens WHERE contract_address = ?`,
		contractAddress,
	)

	var tok model.Token
	err := row.Scan(&tok.ContractAddress, &tok.Name, &tok.Ticker, &tok.AnalysisExists, &tok.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get token %s", contractAddress)
	}
	return &tok, nil
}

func (s *SQLiteStore) ListTokens(ctx context.Context, limit int) ([]model.Token, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT contract_address, name, ticker, analysis_exists, created_at FROM tokens
		 ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tokens")
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var tok model.Token
		if err := rows.Scan(&tok.ContractAddress, &tok.Name, &tok.Ticker, &tok.AnalysisExists, &tok.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan token")
		}
		tokens = append(tokens, tok)
	}
	return tokens, eris.Wrap(rows.Err(), "sqlite: list tokens iterate")
}
