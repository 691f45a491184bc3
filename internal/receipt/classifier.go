package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/receipt-tax-tracker/internal/scanning"
)

// Classification is the classifier's answer for one receipt. Items holds the
// "items" value exactly as the model returned it, positionally aligned with
// the receipt's line items; it is decoded and checked by Enrich.
type Classification struct {
	Items json.RawMessage
	// Unavailable is set when no usable answer could be obtained. It wraps
	// ErrClassificationUnavailable.
	Unavailable error
}

// TaxClassifier produces per-line tax verdicts for a receipt. Implementations
// never fail: problems are reported through Classification.Unavailable so
// that storing the receipt is never blocked.
type TaxClassifier interface {
	Classify(ctx context.Context, r *Receipt) Classification
}

func unavailable(err error) Classification {
	return Classification{Unavailable: fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)}
}

// GenerativeClassifier asks a text-generation model to classify line items
type GenerativeClassifier struct {
	gen scanning.Generator
}

// NewGenerativeClassifier creates a TaxClassifier backed by gen
func NewGenerativeClassifier(gen scanning.Generator) *GenerativeClassifier {
	return &GenerativeClassifier{gen: gen}
}

// Classify sends the line items to the model and extracts its "items" array
func (c *GenerativeClassifier) Classify(ctx context.Context, r *Receipt) Classification {
	if len(r.LineItems) == 0 {
		return Classification{Items: json.RawMessage("[]")}
	}

	prompt, err := buildTaxPrompt(r)
	if err != nil {
		return unavailable(err)
	}

	text, err := c.gen.Generate(ctx, prompt, nil)
	if err != nil {
		return unavailable(fmt.Errorf("calling classifier: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	items, err := extractItems(text)
	if err != nil {
		slog.Warn("Tax classification answer unusable", "error", err, "answer_len", len(text))
		return unavailable(err)
	}
	return Classification{Items: items}
}

// extractItems parses the answer strictly first and falls back to the
// response sanitizer. A missing "items" key is not an error here.
func extractItems(text string) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err == nil {
		return doc["items"], nil
	}

	sanitized, err := scanning.SanitizeJSON(text)
	if err != nil {
		return nil, err
	}
	v, ok := sanitized["items"]
	if !ok {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("re-encoding items: %w", err)
	}
	return b, nil
}

// DisabledClassifier is used when tax classification is switched off
type DisabledClassifier struct{}

// Classify always reports the classification as unavailable
func (DisabledClassifier) Classify(ctx context.Context, r *Receipt) Classification {
	return unavailable(errors.New("classification disabled"))
}

type taxPromptLine struct {
	Index       int      `json:"index"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	TotalPrice  float64  `json:"total_price"`
	Discount    *float64 `json:"discount,omitempty"`
}

func buildTaxPrompt(r *Receipt) (string, error) {
	lines := make([]taxPromptLine, len(r.LineItems))
	for i, li := range r.LineItems {
		lines[i] = taxPromptLine{
			Index:       i,
			Description: li.Description,
			Quantity:    li.Quantity,
			TotalPrice:  li.TotalPrice,
			Discount:    li.LineItemDiscountAmount,
		}
	}
	b, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding line items: %w", err)
	}

	var ctxLines strings.Builder
	fmt.Fprintf(&ctxLines, "Merchant: %s\n", r.MerchantName)
	if r.MerchantAddress != nil {
		fmt.Fprintf(&ctxLines, "Address: %s\n", *r.MerchantAddress)
	}
	if r.ExpenseCategory != nil {
		fmt.Fprintf(&ctxLines, "Expense category: %s\n", *r.ExpenseCategory)
	}
	if r.CurrencyCode != nil {
		fmt.Fprintf(&ctxLines, "Currency: %s\n", *r.CurrencyCode)
	}
	if r.TaxAmount != nil {
		fmt.Fprintf(&ctxLines, "Tax printed on receipt: %.2f\n", *r.TaxAmount)
	}

	return fmt.Sprintf(taxPromptTemplate, ctxLines.String(), len(lines), string(b), len(lines)), nil
}

const taxPromptTemplate = `You are a tax assistant. Decide, for each purchased line item below, whether it is eligible for a tax deduction or refund, and how much tax that eligibility saves.

%s
There are %d line items:
%s

Return ONLY a JSON object of the form
{"items": [{"tax_eligible": true, "tax_class": "...", "tax_class_description": "...", "tax_amount": 0.00}, ...]}

Rules:
- "items" must contain exactly %d entries, in the same order as the line items above
- tax_eligible is a boolean
- tax_amount is a non-negative number; use 0 when the item is not eligible
- tax_class is a short label such as "medical", "office_supplies", "business_meal"; null if unknown
- Do not include any text before or after the JSON`
