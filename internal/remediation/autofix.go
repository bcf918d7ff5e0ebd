package remediation

import (
	"strings"

	"doctrine/internal/intake"
)

// Fix is one candidate repair with the confidence the fixer assigns it.
type Fix struct {
	Value      string
	Confidence float64
}

// fixer proposes a repaired value for one field, or reports that it has no
// idea. Fixers are deterministic and side-effect-free; a proposed value is
// only accepted after the field's validator passes it.
type fixer func(raw string) (Fix, bool)

var fixers = map[string]fixer{
	intake.FieldState:         fixState,
	intake.FieldPhone:         fixPhone,
	intake.FieldEmail:         fixEmail,
	intake.FieldWebsite:       fixWebsite,
	intake.FieldEmployeeCount: fixEmployeeCount,
	intake.FieldCompanyName:   fixWhitespace,
	intake.FieldFullName:      fixWhitespace,
	intake.FieldTitle:         fixWhitespace,
	intake.FieldIndustry:      fixIndustry,
}

// AutoFix proposes a repair for the field, without validating it.
func AutoFix(field, raw string) (Fix, bool) {
	fix, ok := fixers[field]
	if !ok {
		return Fix{}, false
	}
	return fix(raw)
}

// stateNames canonicalizes full US state names to USPS codes.
var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT",
	"delaware": "DE", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI",
	"minnesota": "MN", "mississippi": "MS", "missouri": "MO",
	"montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND",
	"ohio": "OH", "oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA",
	"rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

func fixState(raw string) (Fix, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	normalized = strings.TrimSuffix(normalized, ".")
	if code, ok := stateNames[normalized]; ok {
		return Fix{Value: code, Confidence: 1.0}, true
	}
	// "CA.", "ca ", etc.
	code := strings.ToUpper(strings.Trim(normalized, ". "))
	if len(code) == 2 {
		return Fix{Value: code, Confidence: 0.9}, true
	}
	return Fix{}, false
}

func fixPhone(raw string) (Fix, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	switch digits.Len() {
	case 10:
		return Fix{Value: "+1" + digits.String(), Confidence: 0.9}, true
	case 11:
		if strings.HasPrefix(digits.String(), "1") {
			return Fix{Value: "+" + digits.String(), Confidence: 0.9}, true
		}
	}
	return Fix{}, false
}

func fixEmail(raw string) (Fix, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, "<>")
	cleaned = strings.TrimPrefix(cleaned, "mailto:")
	if cleaned == "" || cleaned == strings.TrimSpace(raw) {
		return Fix{}, false
	}
	return Fix{Value: cleaned, Confidence: 0.8}, true
}

func fixWebsite(raw string) (Fix, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.Contains(trimmed, "://") {
		return Fix{}, false
	}
	return Fix{Value: "https://" + trimmed, Confidence: 0.85}, true
}

func fixEmployeeCount(raw string) (Fix, bool) {
	cleaned := strings.TrimSpace(raw)
	for _, junk := range []string{",", " ", "employees", "people", "~", "+"} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}
	// "50-100" style ranges resolve to the lower bound.
	if lo, _, found := strings.Cut(cleaned, "-"); found && lo != "" {
		return Fix{Value: lo, Confidence: 0.6}, true
	}
	if cleaned == "" || cleaned == strings.TrimSpace(raw) {
		return Fix{}, false
	}
	return Fix{Value: cleaned, Confidence: 0.8}, true
}

func fixWhitespace(raw string) (Fix, bool) {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if collapsed == "" || collapsed == raw {
		return Fix{}, false
	}
	return Fix{Value: collapsed, Confidence: 1.0}, true
}

// industryAliases maps common free-text verticals onto the accepted
// enumeration.
var industryAliases = map[string]string{
	"tech": "software", "technology": "software", "saas": "software",
	"it": "software", "fintech": "finance", "banking": "finance",
	"insurance": "finance", "medical": "healthcare", "pharma": "healthcare",
	"biotech": "healthcare", "ecommerce": "retail", "e-commerce": "retail",
	"shipping": "logistics", "transportation": "logistics",
	"oil and gas": "energy", "utilities": "energy",
	"property": "real_estate", "realestate": "real_estate",
	"hotels": "hospitality", "restaurants": "hospitality",
	"entertainment": "media", "publishing": "media",
}

func fixIndustry(raw string) (Fix, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if canonical, ok := industryAliases[normalized]; ok {
		return Fix{Value: canonical, Confidence: 0.85}, true
	}
	return Fix{}, false
}
