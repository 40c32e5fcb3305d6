// Package bundle detects coordinated buying in a token's launch window.
// Near-simultaneous buys routed through few distinct wallets indicate that
// one actor split a position across addresses; the share of total supply
// captured that way is the bundle risk signal.
package bundle

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/classify"
)

// Trade is one buy transaction inside the launch window. TxGroup identifies
// the on-chain transaction the trade executed in; trades sharing a TxGroup
// landed atomically.
type Trade struct {
	Wallet  string    `json:"wallet"`
	Time    time.Time `json:"time"`
	Amount  float64   `json:"amount"`
	TxGroup string    `json:"tx_group"`
}

// ClusterKind distinguishes how a cluster was detected.
type ClusterKind string

const (
	// KindSameTransaction groups trades that share an on-chain transaction.
	KindSameTransaction ClusterKind = "same_transaction"
	// KindSimultaneous groups trades inside the strict timing window.
	KindSimultaneous ClusterKind = "simultaneous"
	// KindTimed groups trades inside the broader reporting window.
	KindTimed ClusterKind = "timed"
)

// Cluster is a confirmed bundle: a set of trades whose wallet diversity is
// low enough to signal coordination.
type Cluster struct {
	Kind        ClusterKind `json:"kind"`
	Start       time.Time   `json:"start"`
	TradeCount  int         `json:"trade_count"`
	WalletCount int         `json:"wallet_count"`
	Tokens      float64     `json:"tokens"`
	Diversity   float64     `json:"diversity"`
}

// Result is the bundle risk signal for one token.
type Result struct {
	// Supported is false when the chain does not expose per-transaction
	// timing; the signal is then omitted from scoring, never defaulted.
	Supported bool `json:"supported"`

	SupplyPct          float64       `json:"bundled_supply_pct"`
	Tier               classify.Tier `json:"risk_tier"`
	TotalClusters      int           `json:"total_clusters"`
	ClustersBeyondTop5 int           `json:"clusters_beyond_top5"`
	TopClusters        []Cluster     `json:"top_clusters"`
}

// Config tunes the detector. Zero values fall back to defaults.
type Config struct {
	// LaunchWindow bounds the analysis to the first period after the
	// earliest trade.
	LaunchWindow time.Duration
	// StrictWindow is the timing window for the simultaneous-trade signal.
	StrictWindow time.Duration
	// BroadWindow is the wider window used for the reported bundle metric.
	BroadWindow time.Duration
	// MinClusterSize is the minimum trade count for a cluster candidate.
	MinClusterSize int
	// MaxDiversity is the wallet diversity ratio at or below which a
	// candidate is confirmed.
	MaxDiversity float64
	// TopN bounds how many clusters count toward the supply percentage.
	TopN int
}

// DefaultConfig returns the detector settings used in production.
func DefaultConfig() Config {
	return Config{
		LaunchWindow:   time.Hour,
		StrictWindow:   400 * time.Millisecond,
		BroadWindow:    2 * time.Second,
		MinClusterSize: 3,
		MaxDiversity:   0.7,
		TopN:           5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LaunchWindow <= 0 {
		c.LaunchWindow = def.LaunchWindow
	}
	if c.StrictWindow <= 0 {
		c.StrictWindow = def.StrictWindow
	}
	if c.BroadWindow <= 0 {
		c.BroadWindow = def.BroadWindow
	}
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = def.MinClusterSize
	}
	if c.MaxDiversity <= 0 {
		c.MaxDiversity = def.MaxDiversity
	}
	if c.TopN <= 0 {
		c.TopN = def.TopN
	}
	return c
}

// Unsupported returns the result for chains without transaction timing data.
func Unsupported() Result {
	return Result{Supported: false, Tier: classify.BundleNotSignificant}
}

// Evaluate runs bundle detection over the token's launch-window trades and
// classifies the bundled share of total supply.
func Evaluate(trades []Trade, totalSupply float64, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()

	if totalSupply <= 0 {
		return Result{}, eris.Errorf("bundle: total supply must be positive, got %v", totalSupply)
	}

	res := Result{Supported: true, Tier: classify.BundleNotSignificant}

	if len(trades) < cfg.MinClusterSize {
		// No clusters possible.
		return res, nil
	}

	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	cutoff := sorted[0].Time.Add(cfg.LaunchWindow)
	n := sort.Search(len(sorted), func(i int) bool { return sorted[i].Time.After(cutoff) })
	sorted = sorted[:n]
	if len(sorted) < cfg.MinClusterSize {
		return res, nil
	}

	clusters := detectClusters(sorted, cfg)
	if len(clusters) == 0 {
		return res, nil
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Tokens > clusters[j].Tokens })
	top := clusters
	if len(top) > cfg.TopN {
		top = top[:cfg.TopN]
	}

	var bundled float64
	for _, c := range top {
		bundled += c.Tokens
	}

	res.SupplyPct = bundled / totalSupply * 100
	res.TotalClusters = len(clusters)
	res.ClustersBeyondTop5 = len(clusters) - len(top)
	res.TopClusters = top

	tier, err := classify.Classify(res.SupplyPct, classify.BundleRisk)
	if err != nil {
		return Result{}, eris.Wrap(err, "bundle: classify supply pct")
	}
	res.Tier = tier

	zap.L().Debug("bundle: evaluation complete",
		zap.Float64("supply_pct", res.SupplyPct),
		zap.String("tier", tier.Label),
		zap.Int("clusters", len(clusters)),
	)
	return res, nil
}

// detectClusters finds confirmed bundles. Same-transaction groups are taken
// first; the remaining trades are swept with the broad timing window so a
// trade is counted in at most one cluster.
func detectClusters(sorted []Trade, cfg Config) []Cluster {
	var clusters []Cluster
	used := make([]bool, len(sorted))

	// Same on-chain transaction.
	byTx := make(map[string][]int)
	for i, tr := range sorted {
		if tr.TxGroup != "" {
			byTx[tr.TxGroup] = append(byTx[tr.TxGroup], i)
		}
	}
	for _, idxs := range byTx {
		if len(idxs) < cfg.MinClusterSize {
			continue
		}
		if c, ok := confirm(sorted, idxs, KindSameTransaction, cfg); ok {
			clusters = append(clusters, c)
			for _, i := range idxs {
				used[i] = true
			}
		}
	}

	// Timing sweep over remaining trades.
	i := 0
	for i < len(sorted) {
		if used[i] {
			i++
			continue
		}
		idxs := []int{i}
		j := i + 1
		for j < len(sorted) {
			if used[j] {
				j++
				continue
			}
			if sorted[j].Time.Sub(sorted[i].Time) > cfg.BroadWindow {
				break
			}
			idxs = append(idxs, j)
			j++
		}
		if len(idxs) >= cfg.MinClusterSize {
			kind := KindTimed
			span := sorted[idxs[len(idxs)-1]].Time.Sub(sorted[idxs[0]].Time)
			if span <= cfg.StrictWindow {
				kind = KindSimultaneous
			}
			if c, ok := confirm(sorted, idxs, kind, cfg); ok {
				clusters = append(clusters, c)
				for _, k := range idxs {
					used[k] = true
				}
				i = j
				continue
			}
		}
		i++
	}

	return clusters
}

// confirm applies the wallet diversity rule: distinct wallets over trade
// count at or below the threshold signals coordination.
func confirm(trades []Trade, idxs []int, kind ClusterKind, cfg Config) (Cluster, bool) {
	wallets := make(map[string]struct{}, len(idxs))
	var tokens float64
	start := trades[idxs[0]].Time
	for _, i := range idxs {
		wallets[trades[i].Wallet] = struct{}{}
		tokens += trades[i].Amount
		if trades[i].Time.Before(start) {
			start = trades[i].Time
		}
	}

	diversity := float64(len(wallets)) / float64(len(idxs))
	if diversity > cfg.MaxDiversity {
		return Cluster{}, false
	}

	return Cluster{
		Kind:        kind,
		Start:       start,
		TradeCount:  len(idxs),
		WalletCount: len(wallets),
		Tokens:      tokens,
		Diversity:   diversity,
	}, true
}
