package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// EnrichmentStatus tells how far tax enrichment got for a receipt
type EnrichmentStatus string

const (
	// StatusEnriched: every line has its verdict applied and a summary is attached
	StatusEnriched EnrichmentStatus = "enriched"
	// StatusUnclassified: the classifier was unavailable; all lines are
	// unclassified and the summary counts them all as exempt
	StatusUnclassified EnrichmentStatus = "unclassified"
	// StatusDegraded: a classification arrived but was structurally unusable;
	// all lines are unclassified and no summary is attached
	StatusDegraded EnrichmentStatus = "degraded"
	// StatusSkipped: the request ended before classification finished and
	// enrichment was not attempted
	StatusSkipped EnrichmentStatus = "skipped"
)

// EnrichmentResult is the outcome of Enrich. Reason is nil only for StatusEnriched.
type EnrichmentResult struct {
	Receipt *Receipt
	Status  EnrichmentStatus
	Reason  error
}

// Enrich attaches c's verdicts to r's line items by position and recomputes
// r's tax summary from scratch. It mutates r in place and never fails: an
// unusable classification degrades the receipt instead.
func Enrich(r *Receipt, c Classification) EnrichmentResult {
	if c.Unavailable != nil {
		applyVerdicts(r, nil)
		r.TaxSummary = summarize(r.LineItems)
		return EnrichmentResult{Receipt: r, Status: StatusUnclassified, Reason: c.Unavailable}
	}

	verdicts, err := decodeVerdicts(c.Items)
	if err != nil {
		applyVerdicts(r, nil)
		r.TaxSummary = nil
		return EnrichmentResult{Receipt: r, Status: StatusDegraded, Reason: &EnrichmentDegradedError{Err: err}}
	}

	if len(verdicts) != len(r.LineItems) {
		slog.Warn("Tax verdict count does not match line items",
			"line_items", len(r.LineItems),
			"verdicts", len(verdicts),
		)
	}

	applyVerdicts(r, verdicts)
	r.TaxSummary = summarize(r.LineItems)
	return EnrichmentResult{Receipt: r, Status: StatusEnriched}
}

// decodeVerdicts checks the raw "items" value against the line-tax schema.
// Elements may be null, meaning no verdict for that line.
func decodeVerdicts(raw json.RawMessage) ([]*LineTax, error) {
	if len(raw) == 0 {
		return nil, errors.New("classification has no items")
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	if err := lineTaxSchema.Validate(v); err != nil {
		return nil, newValidationError(err)
	}

	var verdicts []*LineTax
	if err := json.Unmarshal(raw, &verdicts); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return verdicts, nil
}

// applyVerdicts sets every line's LineTax; lines past the end of verdicts get none
func applyVerdicts(r *Receipt, verdicts []*LineTax) {
	for i := range r.LineItems {
		var lt *LineTax
		if i < len(verdicts) && verdicts[i] != nil {
			copied := *verdicts[i]
			lt = &copied
		}
		r.LineItems[i].LineTax = lt
	}
}

func summarize(items []LineItem) *TaxSummary {
	s := &TaxSummary{TaxableItems: []LineTax{}}
	saved := decimal.Zero
	for _, li := range items {
		if li.LineTax == nil || !li.LineTax.TaxEligible {
			s.ExemptItemsCount++
			continue
		}
		s.TaxableItemsCount++
		saved = saved.Add(decimal.NewFromFloat(li.LineTax.TaxAmount))
		s.TaxableItems = append(s.TaxableItems, *li.LineTax)
	}
	s.TotalTaxSaved = saved.InexactFloat64()
	return s
}
