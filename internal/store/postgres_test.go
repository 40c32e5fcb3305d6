package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_WriteOnce_Inserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reports`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.WriteOnce(context.Background(), testReport("addr-pg"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteOnce_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reports`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.WriteOnce(context.Background(), testReport("addr-pg"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyPersisted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteOnce_RejectsIncompleteBeforeQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	r := testReport("addr-pg")
	r.MarketPosition = model.DomainResult{}
	err := s.WriteOnce(context.Background(), r)
	require.Error(t, err)
	// No statement reaches the database for an incomplete report.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT report FROM reports WHERE contract_address = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetReport(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport_Roundtrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT report FROM reports WHERE contract_address = \$1`).
		WithArgs("addr-pg").
		WillReturnRows(pgxmock.NewRows([]string{"report"}).
			AddRow([]byte(`{"token_ticker":"SOL","contract_address":"addr-pg","final_score":78.5}`)))

	got, err := s.GetReport(context.Background(), "addr-pg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 78.5, got.FinalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetToken_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT contract_address, name, ticker, analysis_exists, created_at FROM tokens`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetToken(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveToken(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveToken(context.Background(), model.Token{
		ContractAddress: "addr-tok",
		Name:            "Wrapped SOL",
		Ticker:          "SOL",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
