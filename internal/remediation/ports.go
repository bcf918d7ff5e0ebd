// Package remediation repairs or escalates records that failed validation.
// Each failure walks the state machine auto_fix -> external_enrichment ->
// human_review; free deterministic fixes run first, paid lookups are gated
// per call by the budget governor, and whatever survives both lands in the
// human review queue with its full attempt history.
package remediation

import (
	"context"

	"github.com/shopspring/decimal"
)

// Query describes one field a provider is asked to repair.
type Query struct {
	Field    string
	RawValue string
	// Context carries sibling fields a provider may use to disambiguate,
	// e.g. the company name when repairing a website.
	Context map[string]string
}

// Result is a provider's answer. ActualCost is what the call really charged,
// reported back to the governor on completion.
type Result struct {
	Value      string
	Confidence float64
	ActualCost decimal.Decimal
}

// EnrichmentProvider is one paid external lookup capability. Providers are
// invoked only through the budget governor.
type EnrichmentProvider interface {
	Name() string
	// EstimateCost prices the call before it is made; the governor
	// authorizes against this estimate.
	EstimateCost(query Query) decimal.Decimal
	Call(ctx context.Context, query Query) (*Result, error)
}
