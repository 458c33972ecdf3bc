package factory_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/factory"
)

func fullYAML(t *testing.T) string {
	t.Helper()
	f := factory.NewRateTableFactory()
	doc := f.ToDoc(commission.DefaultRateTable())
	doc.Version = "2025-01"
	doc.AddOnFee = "3.00"
	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	return string(out)
}

func TestParseYAML_FullTable(t *testing.T) {
	f := factory.NewRateTableFactory()

	table, err := f.ParseYAML([]byte(fullYAML(t)))

	require.NoError(t, err)
	assert.Equal(t, "2025-01", table.Version())
	assert.True(t, table.AddOnFee().Equal(commission.MustParseDecimal("3")))
	row, ok := table.Lookup(commission.TierElite, commission.CoverageIndividual)
	require.True(t, ok)
	assert.True(t, row.BaseCommission.Equal(commission.MustParseDecimal("20")))
	assert.True(t, row.ReferencePremium.Equal(commission.MustParseDecimal("119")))
}

func TestParseYAML_AcceptsLabelsAndNumbers(t *testing.T) {
	// GIVEN: a document that names coverages by label and writes plain numbers
	// WHEN: parsing it
	// THEN: rows resolve to the canonical codes

	doc := fullYAML(t)
	doc = strings.Replace(doc, "coverage: IO", `coverage: "Member Only"`, 1)

	table, err := factory.NewRateTableFactory().ParseYAML([]byte(doc))

	require.NoError(t, err)
	_, ok := table.Lookup(commission.TierBase, commission.CoverageIndividual)
	assert.True(t, ok)
}

func TestParseJSON(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"version": "json-1", "rates": [`)
	for i, r := range commission.DefaultRateTable().Rows() {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"tier": "` + string(r.Tier) + `", "coverage": "` + string(r.Coverage) +
			`", "commission": ` + r.BaseCommission.String() + `, "premium": "` + r.ReferencePremium.StringFixed(2) + `"}`)
	}
	b.WriteString(`]}`)

	table, err := factory.NewRateTableFactory().ParseJSON([]byte(b.String()))

	require.NoError(t, err)
	assert.Equal(t, "json-1", table.Version())
	assert.True(t, table.AddOnFee().Equal(commission.DefaultAddOnFee))
	assert.Len(t, table.Rows(), 12)
}

func TestParse_RejectsBadTables(t *testing.T) {
	f := factory.NewRateTableFactory()

	tests := []struct {
		name string
		doc  string
	}{
		{"missing rows", "version: x\nrates:\n  - {tier: base, coverage: IO, commission: '9', premium: '59'}\n"},
		{"unknown coverage", "rates:\n  - {tier: base, coverage: pets, commission: '9', premium: '59'}\n"},
		{"unknown tier", "rates:\n  - {tier: gold, coverage: IO, commission: '9', premium: '59'}\n"},
		{"bad amount", "rates:\n  - {tier: base, coverage: IO, commission: nine, premium: '59'}\n"},
		{"missing amount", "rates:\n  - {tier: base, coverage: IO, premium: '59'}\n"},
		{"not yaml", "rates: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseYAML([]byte(tt.doc))
			assert.ErrorIs(t, err, commission.ErrInvalidRateTable)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullYAML(t)), 0o644))

	table, err := factory.NewRateTableFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2025-01", table.Version())

	_, err = factory.NewRateTableFactory().LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
