package receipt

import (
	"encoding/json"
	"time"
)

// LineTax is the tax verdict for a single line item
type LineTax struct {
	TaxEligible         bool    `json:"tax_eligible"`
	TaxClass            *string `json:"tax_class,omitempty"`
	TaxClassDescription *string `json:"tax_class_description,omitempty"`
	TaxAmount           float64 `json:"tax_amount"`
}

// LineItem is one purchased good or service on a receipt
type LineItem struct {
	Description                 string   `json:"description"`
	Quantity                    float64  `json:"quantity"`
	OriginalUnitPrice           float64  `json:"original_unit_price"`
	LineItemDiscountAmount      *float64 `json:"line_item_discount_amount,omitempty"`
	LineItemDiscountDescription *string  `json:"line_item_discount_description,omitempty"`
	TotalPrice                  float64  `json:"total_price"` // after the line discount
	LineTax                     *LineTax `json:"line_tax"`
}

// UnmarshalJSON defaults Quantity to 1 when it is missing or null
func (li *LineItem) UnmarshalJSON(b []byte) error {
	type alias LineItem
	a := alias{Quantity: 1}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*li = LineItem(a)
	return nil
}

// OverallDiscount is a discount applied to the whole receipt. Amount is a positive magnitude.
type OverallDiscount struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// TaxSummary aggregates the line verdicts of an enriched receipt
type TaxSummary struct {
	TotalTaxSaved     float64   `json:"total_tax_saved"`
	ExemptItemsCount  int       `json:"exempt_items_count"`
	TaxableItemsCount int       `json:"taxable_items_count"`
	TaxableItems      []LineTax `json:"taxable_items"`
}

// Receipt is the validated record of a single purchase
type Receipt struct {
	MerchantName        string            `json:"merchant_name"`
	MerchantAddress     *string           `json:"merchant_address,omitempty"`
	TransactionDatetime string            `json:"transaction_datetime"` // ISO 8601
	LineItems           []LineItem        `json:"line_items"`
	Subtotal            *float64          `json:"subtotal,omitempty"`
	OverallDiscounts    []OverallDiscount `json:"overall_discounts"`
	TaxAmount           *float64          `json:"tax_amount,omitempty"`
	TotalAmount         float64           `json:"total_amount"` // the amount actually paid
	CurrencyCode        *string           `json:"currency_code,omitempty"`
	PaymentMethod       *string           `json:"payment_method,omitempty"`
	ExpenseCategory     *string           `json:"expense_category,omitempty"`
	TaxSummary          *TaxSummary       `json:"tax_summary,omitempty"`
}

// Record is what the store persists: an enriched receipt snapshot plus ownership
// and enrichment bookkeeping.
type Record struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Filename         string           `json:"filename"`
	ContentType      string           `json:"content_type"`
	Receipt          *Receipt         `json:"receipt"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`
	EnrichmentError  string           `json:"enrichment_error,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// CategorySpending is one row of a per-owner spending summary
type CategorySpending struct {
	Category      string  `json:"category"`
	CurrencyCode  string  `json:"currency_code"`
	ReceiptCount  int     `json:"receipt_count"`
	TotalAmount   float64 `json:"total_amount"`
	TotalTaxSaved float64 `json:"total_tax_saved"`
}
