package commission

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RESOLVER - Normalizer + Rates
// =============================================================================

// Quote is the resolved commission for one enrollment.
type Quote struct {
	Tier             Tier
	Coverage         CoverageCode
	CommissionAmount decimal.Decimal
	BasePremium      decimal.Decimal
	AddOnApplied     bool
}

// Resolver computes a commission from raw plan and coverage text.
// Same inputs always produce the same output.
type Resolver struct {
	normalizer *Normalizer
	rates      Rates
}

func NewResolver(normalizer *Normalizer, rates Rates) *Resolver {
	if normalizer == nil {
		normalizer = NewNormalizer(nil, nil)
	}
	return &Resolver{normalizer: normalizer, rates: rates}
}

// Resolve returns the commission and base premium. The add-on fee is added to
// the commission only. Returns RateNotFoundError rather than a zero amount.
func (r *Resolver) Resolve(planNameRaw, coverageRaw string, hasAddOn bool) (Quote, error) {
	tier, coverage := r.normalizer.Normalize(planNameRaw, coverageRaw)
	return r.ResolveCanonical(tier, coverage, hasAddOn)
}

// ResolveCanonical resolves an already normalized pair.
func (r *Resolver) ResolveCanonical(tier Tier, coverage CoverageCode, hasAddOn bool) (Quote, error) {
	row, ok := r.rates.Lookup(tier, coverage)
	if !ok {
		return Quote{}, &RateNotFoundError{Tier: tier, Coverage: coverage}
	}

	amount := row.BaseCommission
	if hasAddOn {
		amount = amount.Add(r.rates.AddOnFee())
	}

	return Quote{
		Tier:             tier,
		Coverage:         coverage,
		CommissionAmount: RoundMoney(amount),
		BasePremium:      RoundMoney(row.ReferencePremium),
		AddOnApplied:     hasAddOn,
	}, nil
}
