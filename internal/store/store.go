// Package store persists finalized analysis reports and the token
// registry. Reports are write-once: the first write for a contract address
// wins and every subsequent attempt fails with ErrAlreadyPersisted.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
)

// ErrAlreadyPersisted is returned by WriteOnce when a report for the
// contract address already exists. Callers treat it as terminal, never as
// a retry signal.
var ErrAlreadyPersisted = eris.New("store: report already persisted")

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	Chain      model.Chain      `json:"chain,omitempty"`
	Assessment model.Assessment `json:"assessment,omitempty"`
	// SortByScore orders results by final score descending instead of the
	// default recency order.
	SortByScore bool `json:"sort_by_score,omitempty"`
	Limit       int  `json:"limit,omitempty"`
	Offset      int  `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis engine.
type Store interface {
	// Reports
	WriteOnce(ctx context.Context, report *model.Report) error
	GetReport(ctx context.Context, contractAddress string) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)

	// Token registry
	SaveToken(ctx context.Context, token model.Token) error
	GetToken(ctx context.Context, contractAddress string) (*model.Token, error)
	ListTokens(ctx context.Context, limit int) ([]model.Token, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
