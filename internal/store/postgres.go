package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/go-arlo/go-arlo-swarm/internal/db"
	"github.com/go-arlo/go-arlo-swarm/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_report": `INSERT INTO reports (contract_address, ticker, chain, final_score, final_assessment, report, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (contract_address) DO NOTHING`,
	"get_report":    `SELECT report FROM reports WHERE contract_address = $1`,
	"save_token":    `INSERT INTO tokens (contract_address, name, ticker, analysis_exists, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (contract_address) DO UPDATE SET name = EXCLUDED.name, ticker = EXCLUDED.ticker, analysis_exists = EXCLUDED.analysis_exists`,
	"get_token":     `SELECT contract_address, name, ticker, analysis_exists, created_at FROM tokens WHERE contract_address = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., bulk token imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	contract_address TEXT PRIMARY KEY,
	ticker           TEXT NOT NULL,
	chain            TEXT NOT NULL,
	final_score      DOUBLE PRECISION NOT NULL,
	final_assessment TEXT NOT NULL,
	report           JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tokens (
	contract_address TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	ticker           TEXT NOT NULL,
	analysis_exists  BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_chain ON reports(chain);
CREATE INDEX IF NOT EXISTS idx_reports_assessment ON reports(final_assessment);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tokens_ticker ON tokens(ticker);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// WriteOnce inserts the report, failing with ErrAlreadyPersisted if any
// report exists for the contract address.
func (s *PostgresStore) WriteOnce(ctx context.Context, report *model.Report) error {
	if err := report.Complete(); err != nil {
		return err
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO reports (contract_address, ticker, chain, final_score, final_assessment, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (contract_address) DO NOTHING`,
		report.ContractAddress, report.TokenTicker, string(report.Chain),
		report.FinalScore, string(report.FinalAssessment), reportJSON,
		report.Timestamp.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert report %s", report.ContractAddress)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPersisted
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, contractAddress string) (*model.Report, error) {
	var reportJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM reports WHERE contract_address = $1`,
		contractAddress,
	).Scan(&reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", contractAddress)
	}

	var r model.Report
	if err := json.Unmarshal(reportJSON, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT report FROM reports WHERE 1=1`
	var args []any

	if filter.Chain != "" {
		args = append(args, string(filter.Chain))
		query += ` AND chain = $1`
	}
	if filter.Assessment != "" {
		args = append(args, string(filter.Assessment))
		query += ` AND final_assessment = $` + strconv.Itoa(len(args))
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
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		var r model.Report
		if err := json.Unmarshal(reportJSON, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) SaveToken(ctx context.Context, token model.Token) error {
	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (contract_address, name, ticker, analysis_exists, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (contract_address) DO UPDATE SET
		   name = EXCLUDED.name,
		   ticker = EXCLUDED.ticker,
		   analysis_exists = EXCLUDED.analysis_exists`,
		token.ContractAddress, token.Name, token.Ticker, token.AnalysisExists, createdAt,
	)
	return eris.Wrapf(err, "postgres: save token %s", token.ContractAddress)
}

func (s *PostgresStore) GetToken(ctx context.Context, contractAddress string) (*model.Token, error) {
	var tok model.Token
	err := s.pool.QueryRow(ctx,
		`SELECT contract_address, name, ticker, analysis_exists, created_at FROM tokens WHERE contract_address = $1`,
		contractAddress,
	).Scan(&tok.ContractAddress, &tok.Name, &tok.Ticker, &tok.AnalysisExists, &tok.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get token %s", contractAddress)
	}
	return &tok, nil
}

func (s *PostgresStore) ListTokens(ctx context.Context, limit int) ([]model.Token, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT contract_address, name, ticker, analysis_exists, created_at FROM tokens
		 ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tokens")
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var tok model.Token
		if err := rows.Scan(&tok.ContractAddress, &tok.Name, &tok.Ticker, &tok.AnalysisExists, &tok.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan token")
		}
		tokens = append(tokens, tok)
	}
	return tokens, eris.Wrap(rows.Err(), "postgres: list tokens iterate")
}
