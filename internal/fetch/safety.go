package fetch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
	"github.com/go-arlo/go-arlo-swarm/internal/scorer"
	"github.com/go-arlo/go-arlo-swarm/pkg/birdeye"
	"github.com/go-arlo/go-arlo-swarm/pkg/moralis"
)

// topHolderCount is how many holders feed the concentration metrics when
// the security profile carries no holder data.
const topHolderCount = 10

// SafetyFetcher maps the token security profile and holder concentration
// into the security snapshot.
type SafetyFetcher struct {
	birdeye birdeye.Client
	moralis moralis.Client
	retry   resilience.RetryConfig
}

// NewSafetyFetcher creates a SafetyFetcher over the given providers.
func NewSafetyFetcher(b birdeye.Client, m moralis.Client) *SafetyFetcher {
	return &SafetyFetcher{
		birdeye: b,
		moralis: m,
		retry:   resilience.DefaultRetryConfig(),
	}
}

// FetchSafety grades contract control from the security profile's authority
// state and holder control from supply concentration. Solana profiles carry
// mint/freeze authorities; EVM profiles grade on the mintable flag alone
// and degrade to neutral when the provider exposes neither. A profile
// without holder data falls back to the on-chain top-holder list.
func (f *SafetyFetcher) FetchSafety(ctx context.Context, req model.AnalysisRequest) (scorer.SecuritySnapshot, error) {
	sec, err := resilience.Retry(ctx, f.retry, "token security", func(ctx context.Context) (*birdeye.TokenSecurity, error) {
		return f.birdeye.TokenSecurity(ctx, req.ContractAddress, string(req.Chain))
	})
	if err != nil {
		return scorer.SecuritySnapshot{}, eris.Wrap(err, "fetch: token security")
	}

	var snap scorer.SecuritySnapshot
	if req.Chain == model.ChainSolana {
		snap.MintRenounced = sec.MintAuthority == nil
		snap.FreezeRenounced = sec.FreezeAuthority == nil
		snap.ContractControl = contractControl(snap.MintRenounced, snap.FreezeRenounced)
	} else {
		snap.ContractControl = evmContractControl(sec)
		snap.MintRenounced = snap.ContractControl == scorer.ControlPositive
		snap.FreezeRenounced = snap.MintRenounced
	}

	top10Pct := sec.Top10HolderPct * 100
	creatorPct := sec.CreatorPct * 100
	if top10Pct <= 0 {
		top10Pct, creatorPct, err = f.holderConcentration(ctx, req.ContractAddress)
		if err != nil {
			return scorer.SecuritySnapshot{}, err
		}
	}
	snap.Top10HoldersPct = top10Pct
	snap.CreatorPct = creatorPct
	gradeHolders(&snap)

	return snap, nil
}

// contractControl grades solana authority state. An active mint authority
// can dilute holders at will; an active freeze authority alone can only
// halt transfers.
func contractControl(mintRenounced, freezeRenounced bool) scorer.ControlStatus {
	switch {
	case !mintRenounced:
		return scorer.ControlNegative
	case !freezeRenounced:
		return scorer.ControlNeutral
	default:
		return scorer.ControlPositive
	}
}

// evmContractControl grades an EVM profile from its capability flags.
// Profiles exposing no flags grade neutral.
func evmContractControl(sec *birdeye.TokenSecurity) scorer.ControlStatus {
	if sec.Mintable == nil && sec.NonTransferable == nil {
		zap.L().Warn("security profile has no authority data, contract grade is neutral")
		return scorer.ControlNeutral
	}
	if (sec.Mintable != nil && *sec.Mintable) || (sec.NonTransferable != nil && *sec.NonTransferable) {
		return scorer.ControlNegative
	}
	return scorer.ControlPositive
}

// holderConcentration computes top-10 and largest-wallet supply shares from
// the on-chain holder list. Pool and program accounts are excluded; their
// balances are not a wallet's discretionary holdings.
func (f *SafetyFetcher) holderConcentration(ctx context.Context, address string) (top10Pct, largestPct float64, err error) {
	holders, err := resilience.Retry(ctx, f.retry, "top holders", func(ctx context.Context) ([]moralis.Holder, error) {
		return f.moralis.TopHolders(ctx, address, topHolderCount*2)
	})
	if err != nil {
		return 0, 0, eris.Wrap(err, "fetch: top holders")
	}

	counted := 0
	for _, h := range holders {
		if h.IsContract {
			continue
		}
		if counted < topHolderCount {
			top10Pct += h.SupplyPct
			counted++
		}
		if h.SupplyPct > largestPct {
			largestPct = h.SupplyPct
		}
	}
	return top10Pct, largestPct, nil
}

// gradeHolders fills HolderControl and Concentration from the percentage
// fields.
func gradeHolders(snap *scorer.SecuritySnapshot) {
	switch {
	case snap.Top10HoldersPct >= 50 || snap.CreatorPct >= 20:
		snap.HolderControl = scorer.ControlNegative
	case snap.Top10HoldersPct >= 30:
		snap.HolderControl = scorer.ControlNeutral
	default:
		snap.HolderControl = scorer.ControlPositive
	}

	switch {
	case snap.Top10HoldersPct < 25:
		snap.Concentration = scorer.ConcentrationBalanced
	case snap.Top10HoldersPct < 50:
		snap.Concentration = scorer.ConcentrationModerate
	default:
		snap.Concentration = scorer.ConcentrationHigh
	}
}
