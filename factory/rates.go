/*
Package factory provides YAML/JSON to Go rate table conversion.

PURPOSE:
  Converts a rate table document into a validated commission.RateTable.
  Rates change when the product catalog changes; loading them from a
  versioned file lets finance update them without a code change.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  version: "2025-01"
  add_on_fee: "2.50"
  rates:
    - tier: elite
      coverage: IO
      commission: "20.00"
      premium: "119.00"
    - tier: elite
      coverage: "Member + Spouse"
      commission: "40.00"
      premium: "209.00"
    ...

  tier accepts base/plus/elite or any plan name carrying the tier keyword.
  coverage accepts the short code or any coverage label the normalizer
  understands. Amounts are strings to keep exact cents; plain numbers are
  accepted too.

VALIDATION:
  All twelve (tier, coverage) rows must be present exactly once, with
  non-negative amounts. A table that fails validation is rejected as a
  whole: commissions are never computed from a partial table.

USAGE:
  f := factory.NewRateTableFactory()
  table, err := f.LoadFile("rates.yaml")
  resolver := commission.NewResolver(normalizer, table)

SEE ALSO:
  - commission/rates.go: RateTable and the built-in defaults
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// RateTableDoc is the file representation of a rate table.
type RateTableDoc struct {
	Version  string       `json:"version" yaml:"version"`
	AddOnFee Amount       `json:"add_on_fee,omitempty" yaml:"add_on_fee,omitempty"`
	Rates    []RateRowDoc `json:"rates" yaml:"rates"`
}

// RateRowDoc is one (tier, coverage) row.
type RateRowDoc struct {
	Tier       string `json:"tier" yaml:"tier"`
	Coverage   string `json:"coverage" yaml:"coverage"`
	Commission Amount `json:"commission" yaml:"commission"`
	Premium    Amount `json:"premium" yaml:"premium"`
}

// Amount is a money value written as a string or a number.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*a = Amount(s)
	return nil
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	*a = Amount(node.Value)
	return nil
}

func (a Amount) decimal(field string) (decimal.Decimal, error) {
	s := strings.TrimPrefix(strings.TrimSpace(string(a)), "$")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, string(a), err)
	}
	return commission.RoundMoney(d), nil
}

// =============================================================================
// FACTORY
// =============================================================================

// RateTableFactory creates rate tables from documents.
type RateTableFactory struct{}

func NewRateTableFactory() *RateTableFactory {
	return &RateTableFactory{}
}

// LoadFile reads path and parses it as JSON when the extension is .json,
// YAML otherwise.
func (f *RateTableFactory) LoadFile(path string) (*commission.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return f.ParseJSON(data)
	}
	return f.ParseYAML(data)
}

// ParseYAML parses a YAML rate table document.
func (f *RateTableFactory) ParseYAML(data []byte) (*commission.RateTable, error) {
	var doc RateTableDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML: %v", commission.ErrInvalidRateTable, err)
	}
	return f.FromDoc(doc)
}

// ParseJSON parses a JSON rate table document.
func (f *RateTableFactory) ParseJSON(data []byte) (*commission.RateTable, error) {
	var doc RateTableDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", commission.ErrInvalidRateTable, err)
	}
	return f.FromDoc(doc)
}

// FromDoc converts and validates a parsed document.
func (f *RateTableFactory) FromDoc(doc RateTableDoc) (*commission.RateTable, error) {
	fee := commission.DefaultAddOnFee
	if doc.AddOnFee != "" {
		d, err := doc.AddOnFee.decimal("add_on_fee")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", commission.ErrInvalidRateTable, err)
		}
		fee = d
	}

	rows := make([]commission.RateRow, 0, len(doc.Rates))
	for i, rd := range doc.Rates {
		row, err := parseRow(rd)
		if err != nil {
			return nil, fmt.Errorf("%w: rates[%d]: %v", commission.ErrInvalidRateTable, i, err)
		}
		rows = append(rows, row)
	}

	version := doc.Version
	if version == "" {
		version = "unversioned"
	}
	return commission.NewRateTable(version, rows, fee)
}

// ToDoc converts a rate table back to its document form.
func (f *RateTableFactory) ToDoc(t *commission.RateTable) RateTableDoc {
	doc := RateTableDoc{
		Version:  t.Version(),
		AddOnFee: Amount(t.AddOnFee().StringFixed(2)),
	}
	for _, r := range t.Rows() {
		doc.Rates = append(doc.Rates, RateRowDoc{
			Tier:       string(r.Tier),
			Coverage:   string(r.Coverage),
			Commission: Amount(r.BaseCommission.StringFixed(2)),
			Premium:    Amount(r.ReferencePremium.StringFixed(2)),
		})
	}
	return doc
}

func parseRow(rd RateRowDoc) (commission.RateRow, error) {
	tier, ok := commission.ParseTier(rd.Tier)
	if !ok {
		return commission.RateRow{}, fmt.Errorf("unknown tier %q", rd.Tier)
	}
	coverage, ok := commission.ParseCoverage(rd.Coverage)
	if !ok {
		return commission.RateRow{}, fmt.Errorf("unknown coverage %q", rd.Coverage)
	}
	amount, err := rd.Commission.decimal("commission")
	if err != nil {
		return commission.RateRow{}, err
	}
	premium, err := rd.Premium.decimal("premium")
	if err != nil {
		return commission.RateRow{}, err
	}
	return commission.RateRow{
		Tier:             tier,
		Coverage:         coverage,
		BaseCommission:   amount,
		ReferencePremium: premium,
	}, nil
}
