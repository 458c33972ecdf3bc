/*
normalize.go - Plan and coverage text to canonical (Tier, CoverageCode)

PURPOSE:
  Enrollment forms, imports and the legacy store carry free-form plan names
  ("MyPremierPlan Elite - Member Only") and member-type strings
  ("Employee + Spouse", "parent/child"). Everything downstream works on the
  canonical pair.

RULES:
  Tier:     case-insensitive substring, precedence Elite > Plus > Base.
            A trailing "<tier> - <coverage>" suffix is stripped first.
  Coverage: letters only, lower-cased, precedence
            Spouse > Children > Family > default IndividualOnly.

  Normalization never fails. When no keyword matches the default is used
  and a warning is logged.
*/
package commission

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
)

// =============================================================================
// KEYWORDS
// =============================================================================

var tierKeywords = []struct {
	tier    Tier
	keyword string
}{
	{TierElite, "elite"},
	{TierPlus, "plus"},
	{TierBase, "base"},
}

// Checked in order; the first group with a match wins.
var coverageKeywords = []struct {
	code     CoverageCode
	keywords []string
}{
	{CoverageSpouse, []string{"spouse", "couple", "partner", "husband", "wife"}},
	{CoverageChildren, []string{"child", "kids", "dependent"}},
	{CoverageFamily, []string{"family", "adultmember", "household"}},
	{CoverageIndividual, []string{"memberonly", "individual", "employeeonly", "single", "self"}},
}

// Short codes are only accepted as the whole normalized string.
var coverageCodes = map[string]CoverageCode{
	"io":  CoverageIndividual,
	"ee":  CoverageIndividual,
	"mo":  CoverageIndividual,
	"ms":  CoverageSpouse,
	"es":  CoverageSpouse,
	"esp": CoverageSpouse,
	"mc":  CoverageChildren,
	"ec":  CoverageChildren,
	"ech": CoverageChildren,
	"pc":  CoverageChildren,
	"mf":  CoverageFamily,
	"ef":  CoverageFamily,
	"fam": CoverageFamily,
}

var suffixSeparators = []string{" - ", " – "}

// =============================================================================
// PURE PARSERS
// =============================================================================

// PlanDisplayName strips a "<tier-name> - <coverage>" suffix, returning the
// plan name up to and including the tier.
func PlanDisplayName(raw string) string {
	name := strings.TrimSpace(raw)
	for _, sep := range suffixSeparators {
		i := strings.LastIndex(name, sep)
		if i < 0 {
			continue
		}
		prefix := strings.TrimSpace(name[:i])
		lower := strings.ToLower(prefix)
		for _, tk := range tierKeywords {
			if strings.HasSuffix(lower, tk.keyword) {
				return prefix
			}
		}
	}
	return name
}

// ParseTier resolves the tier. ok is false when the default was applied.
func ParseTier(planNameRaw string) (tier Tier, ok bool) {
	for _, candidate := range []string{PlanDisplayName(planNameRaw), planNameRaw} {
		lower := strings.ToLower(candidate)
		for _, tk := range tierKeywords {
			if strings.Contains(lower, tk.keyword) {
				return tk.tier, true
			}
		}
	}
	return TierBase, false
}

// ParseCoverage resolves the coverage code. ok is false when the default was applied.
func ParseCoverage(coverageRaw string) (code CoverageCode, ok bool) {
	norm := lettersOnly(coverageRaw)
	if norm == "" {
		return CoverageIndividual, false
	}
	if c, found := coverageCodes[norm]; found {
		return c, true
	}
	for _, group := range coverageKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(norm, kw) {
				return group.code, true
			}
		}
	}
	return CoverageIndividual, false
}

func lettersOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer wraps the parsers with logging and metrics.
type Normalizer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewNormalizer(logger *zap.Logger, m *metrics.Metrics) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger, metrics: m}
}

// Normalize never fails; unknown text falls back to Base / IndividualOnly.
func (n *Normalizer) Normalize(planNameRaw, coverageRaw string) (Tier, CoverageCode) {
	tier, ok := ParseTier(planNameRaw)
	if !ok {
		n.metrics.IncNormalizationDefault("tier")
		n.logger.Warn("plan name matched no tier, defaulting",
			zap.String("plan", planNameRaw),
			zap.String("default", string(tier)))
	}

	coverage, ok := ParseCoverage(coverageRaw)
	if !ok {
		n.metrics.IncNormalizationDefault("coverage")
		n.logger.Warn("coverage matched no member type, defaulting",
			zap.String("coverage", coverageRaw),
			zap.String("default", string(coverage)))
	}

	return tier, coverage
}
