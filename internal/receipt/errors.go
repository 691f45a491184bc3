package receipt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	// ErrNotFound is returned when a receipt does not exist or belongs to another user
	ErrNotFound = errors.New("receipt not found")

	// ErrNotAReceipt is returned when the model says the image is not a receipt
	ErrNotAReceipt = errors.New("image does not appear to be a receipt")

	// ErrScanFailed wraps failures of the extraction call itself
	ErrScanFailed = errors.New("receipt scan failed")

	// ErrClassificationUnavailable marks a tax classification that could not be obtained
	ErrClassificationUnavailable = errors.New("tax classification unavailable")

	// ErrEnrichmentDegraded marks a classification that arrived but could not be applied
	ErrEnrichmentDegraded = errors.New("tax enrichment degraded")
)

// FieldError is a single schema violation. Field is a JSON pointer into the
// validated document, e.g. "/line_items/1/quantity".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newValidationError flattens a schema error into its leaf causes
func newValidationError(err error) *ValidationError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationError{Fields: []FieldError{{Field: "/", Message: err.Error()}}}
	}
	return &ValidationError{Fields: leafErrors(ve)}
}

func leafErrors(ve *jsonschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		field := ve.InstanceLocation
		if field == "" {
			field = "/"
		}
		return []FieldError{{Field: field, Message: ve.Message}}
	}
	var out []FieldError
	for _, c := range ve.Causes {
		out = append(out, leafErrors(c)...)
	}
	return out
}

// EnrichmentDegradedError carries the reason a classification could not be applied
type EnrichmentDegradedError struct {
	Err error
}

func (e *EnrichmentDegradedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrEnrichmentDegraded, e.Err)
}

func (e *EnrichmentDegradedError) Unwrap() error {
	return e.Err
}

func (e *EnrichmentDegradedError) Is(target error) bool {
	return target == ErrEnrichmentDegraded
}
