package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Chain identifies the blockchain network a token lives on. The chain
// determines which sub-analyses are applicable: per-transaction timing data
// (bundle detection) and exit-liquidity depth are only exposed by some
// networks.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainBSC      Chain = "bsc"
)

// ParseChain normalizes a chain name, mapping common aliases.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "solana", "sol":
		return ChainSolana, nil
	case "ethereum", "eth":
		return ChainEthereum, nil
	case "base":
		return ChainBase, nil
	case "bsc", "bnb", "binance":
		return ChainBSC, nil
	default:
		return "", eris.Errorf("model: unknown chain %q", s)
	}
}

// SupportsBundleDetection reports whether the chain exposes per-transaction
// timing data suitable for coordinated-buy clustering.
func (c Chain) SupportsBundleDetection() bool {
	return c == ChainSolana
}

// SupportsExitLiquidity reports whether exit-liquidity depth data is
// available for the chain.
func (c Chain) SupportsExitLiquidity() bool {
	return c == ChainSolana
}

// AnalysisRequest identifies exactly one analysis run. Immutable.
type AnalysisRequest struct {
	Ticker          string `json:"ticker"`
	ContractAddress string `json:"contract_address"`
	Chain           Chain  `json:"chain"`
}

// Validate checks the request has the fields required to start a run.
func (r AnalysisRequest) Validate() error {
	if r.ContractAddress == "" {
		return eris.New("model: contract address is required")
	}
	if r.Ticker == "" {
		return eris.New("model: ticker is required")
	}
	if r.Chain == "" {
		return eris.New("model: chain is required")
	}
	return nil
}
