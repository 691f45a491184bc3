package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/receipt-tax-tracker/internal/scanning"
)

var (
	receiptSchema = mustCompileSchema("receipt.json", buildReceiptSchema())
	lineTaxSchema = mustCompileSchema("line_tax.json", buildLineTaxListSchema())
)

func money() map[string]any {
	return map[string]any{"type": "number", "minimum": 0}
}

func optionalMoney() map[string]any {
	return map[string]any{"type": []string{"number", "null"}, "minimum": 0}
}

func optionalText() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

// buildReceiptSchema describes what extraction must produce. Optional fields
// may be omitted or null; the arithmetic between fields is not checked here.
func buildReceiptSchema() map[string]any {
	lineItem := map[string]any{
		"type":     "object",
		"required": []string{"description", "original_unit_price", "total_price"},
		"properties": map[string]any{
			"description":                    map[string]any{"type": "string", "minLength": 1, "pattern": `\S`},
			"quantity":                       map[string]any{"type": []string{"number", "null"}, "exclusiveMinimum": 0},
			"original_unit_price":            money(),
			"line_item_discount_amount":      optionalMoney(),
			"line_item_discount_description": optionalText(),
			"total_price":                    money(),
		},
	}
	discount := map[string]any{
		"type":     "object",
		"required": []string{"description", "amount"},
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"amount":      map[string]any{"type": "number"},
		},
	}

	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"merchant_name", "transaction_datetime", "total_amount"},
		"properties": map[string]any{
			"merchant_name":        map[string]any{"type": "string"},
			"merchant_address":     optionalText(),
			"transaction_datetime": map[string]any{"type": "string", "minLength": 1},
			"line_items":           map[string]any{"type": []string{"array", "null"}, "items": lineItem},
			"subtotal":             optionalMoney(),
			"overall_discounts":    map[string]any{"type": []string{"array", "null"}, "items": discount},
			"tax_amount":           optionalMoney(),
			"total_amount":         money(),
			"currency_code":        optionalText(),
			"payment_method":       optionalText(),
			"expense_category":     optionalText(),
		},
	}
}

// buildLineTaxListSchema describes the classifier's "items" array. A null
// element is an explicit "no verdict" for that line.
func buildLineTaxListSchema() map[string]any {
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "array",
		"items": map[string]any{
			"type":     []string{"object", "null"},
			"required": []string{"tax_eligible", "tax_amount"},
			"properties": map[string]any{
				"tax_eligible":          map[string]any{"type": "boolean"},
				"tax_class":             optionalText(),
				"tax_class_description": optionalText(),
				"tax_amount":            money(),
			},
		},
	}
}

func mustCompileSchema(name string, schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("marshal schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// ParseModelOutput turns the extraction model's raw answer into a validated
// Receipt. It fails with ErrNotAReceipt, a *scanning.ParseError or a
// *ValidationError.
func ParseModelOutput(text string) (*Receipt, error) {
	if scanning.NormalizeJSONText(text) == "{null}" {
		return nil, ErrNotAReceipt
	}

	doc, err := scanning.SanitizeJSON(text)
	if err != nil {
		return nil, err
	}
	return ParseReceipt(doc)
}

// ParseReceipt validates a decoded extraction document and builds a Receipt
// from it. Any line_tax or tax_summary in the input is dropped; those are
// only ever attached by Enrich.
func ParseReceipt(doc map[string]any) (*Receipt, error) {
	doc = normalizeExtraction(doc)

	if err := receiptSchema.Validate(doc); err != nil {
		return nil, newValidationError(err)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encoding receipt: %w", err)
	}
	var r Receipt
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, newValidationError(err)
	}

	if r.LineItems == nil {
		r.LineItems = []LineItem{}
	}
	if r.OverallDiscounts == nil {
		r.OverallDiscounts = []OverallDiscount{}
	}
	return &r, nil
}

// normalizeExtraction folds the transaction_date/transaction_time pair the
// extraction prompt asks for into transaction_datetime, tidies codes and
// strips tax data the model was never asked for. The input map is not modified.
func normalizeExtraction(doc map[string]any) map[string]any {
	out := maps.Clone(doc)
	if out == nil {
		out = map[string]any{}
	}

	delete(out, "tax_summary")
	if items, ok := out["line_items"].([]any); ok {
		cleaned := make([]any, len(items))
		for i, item := range items {
			if m, ok := item.(map[string]any); ok {
				m = maps.Clone(m)
				delete(m, "line_tax")
				item = m
			}
			cleaned[i] = item
		}
		out["line_items"] = cleaned
	}

	if v, ok := out["transaction_datetime"]; !ok || v == nil {
		date, _ := out["transaction_date"].(string)
		tm, _ := out["transaction_time"].(string)
		date, tm = strings.TrimSpace(date), strings.TrimSpace(tm)
		switch {
		case date != "" && tm != "":
			out["transaction_datetime"] = date + "T" + tm
		case date != "":
			out["transaction_datetime"] = date
		}
	}

	if cc, ok := out["currency_code"].(string); ok {
		out["currency_code"] = strings.ToUpper(strings.TrimSpace(cc))
	}
	return out
}
