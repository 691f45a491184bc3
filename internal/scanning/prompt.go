package scanning

import (
	"fmt"
	"strings"
)

// ExpenseCategories are the labels the extraction prompt allows for expense_category
var ExpenseCategories = []string{
	"Food & Dining",
	"Groceries",
	"Transportation",
	"Utilities",
	"Shopping",
	"Entertainment",
	"Office Supplies",
	"Travel",
	"Healthcare",
	"Services",
	"Other",
}

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
var receiptScanPrompt = fmt.Sprintf(receiptScanTemplate, strings.Join(ExpenseCategories, ", "))

const receiptScanTemplate = `You are analyzing a photo of a receipt or invoice.

If the image is NOT a receipt (a landscape, an unrelated document, a drawing), reply with the JSON literal null and nothing else.

If it IS a receipt, extract the following fields:

1. **merchant_name** (string): the business name, usually the largest text in the header.
2. **merchant_address** (string, optional): the merchant's street address.
3. **transaction_date** (string): the purchase date as YYYY-MM-DD.
4. **transaction_time** (string, optional): the purchase time as HH:MM:SS.
5. **line_items** (array): one object per purchased item or service with
   - description (string)
   - quantity (number, 1 if not printed)
   - original_unit_price (number): price of one unit BEFORE any item discount
   - line_item_discount_amount (number, optional): discount on this line as a positive number
   - line_item_discount_description (string, optional): e.g. "20%% off", "Sale"
   - total_price (number): original_unit_price * quantity - line_item_discount_amount
6. **subtotal** (number, optional): sum of line item total_price before overall discounts and tax.
7. **overall_discounts** (array, optional): objects with description (string) and amount (positive number).
8. **tax_amount** (number, optional): total tax charged; sum multiple taxes.
9. **total_amount** (number): the final amount paid, the most prominent total.
10. **currency_code** (string, optional): ISO 4217 code such as USD, EUR, GBP. Infer it from symbols or location.
11. **payment_method** (string, optional): e.g. "Cash", "Visa ****1234".
12. **expense_category** (string): infer one of %s.

Important:
- Return a single JSON object with snake_case keys
- Monetary values must be numbers, not strings, and carry no currency symbols
- Omit optional fields you cannot find or set them to null
- Do not include any text before or after the JSON`
