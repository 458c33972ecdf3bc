/*
rates.go - Immutable commission rate table

PURPOSE:
  Maps (Tier, CoverageCode) to the base commission and the reference premium,
  plus one flat add-on fee. A RateTable is configuration: it is built once,
  validated for completeness, and injected into the Resolver. Nothing mutates
  it after construction, so concurrent readers need no locking.

COMPLETENESS:
  NewRateTable rejects a table that misses any of the 12 (3 tiers x 4
  coverage codes) rows. The Resolver still checks every lookup.

SEE ALSO:
  - resolver.go: consumes Rates
  - factory/rates.go: builds a RateTable from YAML/JSON configuration
*/
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateRow is one row of the rate table.
type RateRow struct {
	Tier             Tier
	Coverage         CoverageCode
	BaseCommission   decimal.Decimal
	ReferencePremium decimal.Decimal
}

// Rates is what the Resolver needs from a rate table.
type Rates interface {
	Lookup(tier Tier, coverage CoverageCode) (RateRow, bool)
	AddOnFee() decimal.Decimal
}

type rateKey struct {
	tier     Tier
	coverage CoverageCode
}

// RateTable is an immutable, complete rate table.
type RateTable struct {
	version  string
	rows     map[rateKey]RateRow
	addOnFee decimal.Decimal
}

// NewRateTable validates rows and builds a table. Every (tier, coverage)
// pair must appear exactly once; amounts must not be negative.
func NewRateTable(version string, rows []RateRow, addOnFee decimal.Decimal) (*RateTable, error) {
	if addOnFee.IsNegative() {
		return nil, fmt.Errorf("%w: negative add-on fee %s", ErrInvalidRateTable, addOnFee)
	}

	byKey := make(map[rateKey]RateRow, len(rows))
	for _, r := range rows {
		if !r.Tier.Valid() || !r.Coverage.Valid() {
			return nil, fmt.Errorf("%w: unknown tier/coverage %q/%q", ErrInvalidRateTable, r.Tier, r.Coverage)
		}
		if r.BaseCommission.IsNegative() || r.ReferencePremium.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount for %s/%s", ErrInvalidRateTable, r.Tier, r.Coverage)
		}
		k := rateKey{r.Tier, r.Coverage}
		if _, dup := byKey[k]; dup {
			return nil, fmt.Errorf("%w: duplicate row %s/%s", ErrInvalidRateTable, r.Tier, r.Coverage)
		}
		byKey[k] = r
	}

	for _, t := range Tiers {
		for _, c := range CoverageCodes {
			if _, ok := byKey[rateKey{t, c}]; !ok {
				return nil, fmt.Errorf("%w: missing row %s/%s", ErrInvalidRateTable, t, c)
			}
		}
	}

	return &RateTable{version: version, rows: byKey, addOnFee: addOnFee}, nil
}

func (rt *RateTable) Lookup(tier Tier, coverage CoverageCode) (RateRow, bool) {
	r, ok := rt.rows[rateKey{tier, coverage}]
	return r, ok
}

func (rt *RateTable) AddOnFee() decimal.Decimal { return rt.addOnFee }

func (rt *RateTable) Version() string { return rt.version }

// Rows returns a copy of every row, ordered by tier then coverage.
func (rt *RateTable) Rows() []RateRow {
	out := make([]RateRow, 0, len(rt.rows))
	for _, t := range Tiers {
		for _, c := range CoverageCodes {
			if r, ok := rt.rows[rateKey{t, c}]; ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// =============================================================================
// DEFAULT TABLE
// =============================================================================

// DefaultAddOnFee is the flat fee for the prescription add-on rider.
var DefaultAddOnFee = MustParseDecimal("2.50")

// DefaultRateTable returns the rate table currently in effect.
func DefaultRateTable() *RateTable {
	row := func(t Tier, c CoverageCode, commission, premium string) RateRow {
		return RateRow{Tier: t, Coverage: c,
			BaseCommission:   MustParseDecimal(commission),
			ReferencePremium: MustParseDecimal(premium)}
	}
	rt, err := NewRateTable("builtin", []RateRow{
		row(TierBase, CoverageIndividual, "9.00", "59.00"),
		row(TierBase, CoverageSpouse, "15.00", "99.00"),
		row(TierBase, CoverageChildren, "17.00", "129.00"),
		row(TierBase, CoverageFamily, "17.00", "149.00"),

		row(TierPlus, CoverageIndividual, "15.00", "79.00"),
		row(TierPlus, CoverageSpouse, "21.00", "149.00"),
		row(TierPlus, CoverageChildren, "21.00", "159.00"),
		row(TierPlus, CoverageFamily, "21.00", "199.00"),

		row(TierElite, CoverageIndividual, "20.00", "119.00"),
		row(TierElite, CoverageSpouse, "40.00", "209.00"),
		row(TierElite, CoverageChildren, "40.00", "229.00"),
		row(TierElite, CoverageFamily, "40.00", "279.00"),
	}, DefaultAddOnFee)
	if err != nil {
		panic(err)
	}
	return rt
}
