package model

import (
	"strings"

	"golang.org/x/text/language"
)

// JobType classifies the kind of roofing work. Unknown values coerce to
// JobTypeOther instead of failing the request.
type JobType string

const (
	JobTypeResidentialReroof JobType = "residential_reroof"
	JobTypeRepair            JobType = "repair"
	JobTypeNewConstruction   JobType = "new_construction"
	JobTypeCommercial        JobType = "commercial"
	JobTypeInspection        JobType = "inspection"
	JobTypeGutter            JobType = "gutter"
	JobTypeOther             JobType = "other"
)

var jobTypes = map[JobType]bool{
	JobTypeResidentialReroof: true,
	JobTypeRepair:            true,
	JobTypeNewConstruction:   true,
	JobTypeCommercial:        true,
	JobTypeInspection:        true,
	JobTypeGutter:            true,
	JobTypeOther:             true,
}

// ParseJobType returns the JobType for s, or JobTypeOther.
func ParseJobType(s string) JobType {
	jt := JobType(normalizeEnum(s))
	if jobTypes[jt] {
		return jt
	}
	return JobTypeOther
}

// MaterialType classifies a checklist material line.
type MaterialType string

const (
	MaterialAsphaltShingle MaterialType = "asphalt_shingle"
	MaterialMetal          MaterialType = "metal"
	MaterialTile           MaterialType = "tile"
	MaterialSlate          MaterialType = "slate"
	MaterialTPO            MaterialType = "tpo"
	MaterialEPDM           MaterialType = "epdm"
	MaterialWoodShake      MaterialType = "wood_shake"
	MaterialUnderlayment   MaterialType = "underlayment"
	MaterialFlashing       MaterialType = "flashing"
	MaterialOther          MaterialType = "other"
)

var materialTypes = map[MaterialType]bool{
	MaterialAsphaltShingle: true,
	MaterialMetal:          true,
	MaterialTile:           true,
	MaterialSlate:          true,
	MaterialTPO:            true,
	MaterialEPDM:           true,
	MaterialWoodShake:      true,
	MaterialUnderlayment:   true,
	MaterialFlashing:       true,
	MaterialOther:          true,
}

// ParseMaterialType returns the MaterialType for s, or MaterialOther.
func ParseMaterialType(s string) MaterialType {
	mt := MaterialType(normalizeEnum(s))
	if materialTypes[mt] {
		return mt
	}
	return MaterialOther
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

// Locale selects the language of prompts, fallback copy and summaries.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleES Locale = "es"
)

var localeMatcher = language.NewMatcher([]language.Tag{language.English, language.Spanish})

// ParseLocale maps any BCP 47-ish input ("es", "es-MX", "ES_419") onto a
// supported Locale, defaulting to English.
func ParseLocale(s string) Locale {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	if s == "" {
		return LocaleEN
	}
	_, idx := language.MatchStrings(localeMatcher, s)
	if idx == 1 {
		return LocaleES
	}
	return LocaleEN
}

// Tag returns the x/text language tag for the locale.
func (l Locale) Tag() language.Tag {
	if l == LocaleES {
		return language.Spanish
	}
	return language.English
}

// InsightKind is the category of an insight. The order of the constants is
// the priority order used when sorting a response.
type InsightKind string

const (
	InsightRisk        InsightKind = "risk"
	InsightAction      InsightKind = "action"
	InsightOpportunity InsightKind = "opportunity"
)

// ParseInsightKind returns the kind for s and whether it is a known kind.
func ParseInsightKind(s string) (InsightKind, bool) {
	k := InsightKind(normalizeEnum(s))
	switch k {
	case InsightRisk, InsightAction, InsightOpportunity:
		return k, true
	default:
		return "", false
	}
}

// Priority ranks kinds: risks first, then actions, then opportunities.
func (k InsightKind) Priority() int {
	switch k {
	case InsightRisk:
		return 0
	case InsightAction:
		return 1
	default:
		return 2
	}
}

// Source records which path produced a response.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)
