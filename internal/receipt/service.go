package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-tax-tracker/internal/scanning"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Service runs the receipt pipeline: scan, parse, classify, enrich, store
type Service struct {
	db          DB
	scanner     scanning.Scanner
	classifier  TaxClassifier
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, classifier TaxClassifier, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, classifier, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, classifier TaxClassifier, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		classifier:  classifier,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if ext = unsafeFilenameChars.ReplaceAllString(strings.TrimPrefix(ext, "."), ""); ext != "" {
		ext = "." + ext
	}
	return base + ext
}

// ProcessReceipt stores the upload, extracts and validates the receipt,
// enriches it with tax classification and persists it for userID.
// Extraction failures are fatal and leave nothing behind; enrichment
// failures only degrade the stored record.
func (s *Service) ProcessReceipt(ctx context.Context, userID, filename string, data []byte, contentType string) (*Record, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(userID, fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	raw, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discard(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w: %w", ErrScanFailed, err)
	}

	rcpt, err := ParseModelOutput(raw)
	if err != nil {
		slog.Warn("Rejected extraction output", "filename", filename, "error", err)
		s.discard(savedPath)
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}

	record := &Record{
		ID:          id,
		UserID:      userID,
		Filename:    savedPath,
		ContentType: contentType,
		Receipt:     rcpt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, d := range Reconcile(rcpt) {
		record.Warnings = append(record.Warnings, d.String())
	}
	if len(record.Warnings) > 0 {
		slog.Warn("Receipt arithmetic does not reconcile", "id", id, "discrepancies", record.Warnings)
	}

	if err := s.enrich(ctx, record); err != nil {
		// The request is gone; keep the receipt, unenriched
		record.EnrichmentStatus = StatusSkipped
		record.EnrichmentError = err.Error()
	}

	if err := s.db.SaveReceipt(record); err != nil {
		s.discard(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return record, nil
}

// enrich classifies and enriches record.Receipt. It returns an error only
// when ctx ended during classification, in which case the receipt is left
// untouched.
func (s *Service) enrich(ctx context.Context, record *Record) error {
	classification := s.classifier.Classify(ctx, record.Receipt)
	if err := ctx.Err(); err != nil {
		return err
	}

	result := Enrich(record.Receipt, classification)
	record.EnrichmentStatus = result.Status
	record.EnrichmentError = ""
	if result.Reason != nil {
		record.EnrichmentError = result.Reason.Error()
	}

	switch result.Status {
	case StatusDegraded:
		slog.Warn("Tax enrichment degraded", "id", record.ID, "error", result.Reason)
	case StatusUnclassified:
		slog.Info("Tax classification unavailable", "id", record.ID, "error", result.Reason)
	}
	return nil
}

func (s *Service) discard(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// ReclassifyReceipt re-runs tax classification and enrichment on a stored receipt
func (s *Service) ReclassifyReceipt(ctx context.Context, userID, id string) (*Record, error) {
	record, err := s.GetReceipt(userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.enrich(ctx, record); err != nil {
		return nil, fmt.Errorf("reclassifying receipt: %w", err)
	}
	record.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(record); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return record, nil
}

// GetReceipt retrieves a receipt by ID. Receipts owned by someone else are reported as not found.
func (s *Service) GetReceipt(userID, id string) (*Record, error) {
	record, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if record.UserID != userID {
		return nil, fmt.Errorf("getting receipt: %w: %s", ErrNotFound, id)
	}
	return record, nil
}

// ListReceipts returns all receipts owned by userID
func (s *Service) ListReceipts(userID string) ([]*Record, error) {
	records, err := s.db.ListReceipts(userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return records, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(userID, id string) error {
	record, err := s.GetReceipt(userID, id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	// A missing file should not keep the record alive
	s.discard(record.Filename)

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the original upload for a receipt
func (s *Service) GetReceiptFile(userID, id string) ([]byte, string, error) {
	record, err := s.GetReceipt(userID, id)
	if err != nil {
		return nil, "", err
	}

	data, err := s.storage.Get(record.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, record.ContentType, nil
}

const uncategorized = "Uncategorized"

// SummarizeSpending totals the owner's receipts per expense category and
// currency. Amounts in different currencies are never added together.
func (s *Service) SummarizeSpending(userID string) ([]CategorySpending, error) {
	records, err := s.ListReceipts(userID)
	if err != nil {
		return nil, err
	}

	type key struct{ category, currency string }
	type acc struct {
		count      int
		total, tax decimal.Decimal
	}
	groups := make(map[key]*acc)

	for _, record := range records {
		r := record.Receipt
		if r == nil {
			continue
		}
		k := key{category: uncategorized}
		if r.ExpenseCategory != nil && strings.TrimSpace(*r.ExpenseCategory) != "" {
			k.category = strings.TrimSpace(*r.ExpenseCategory)
		}
		if r.CurrencyCode != nil {
			k.currency = *r.CurrencyCode
		}

		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.total = a.total.Add(decimal.NewFromFloat(r.TotalAmount))
		if r.TaxSummary != nil {
			a.tax = a.tax.Add(decimal.NewFromFloat(r.TaxSummary.TotalTaxSaved))
		}
	}

	out := make([]CategorySpending, 0, len(groups))
	for k, a := range groups {
		out = append(out, CategorySpending{
			Category:      k.category,
			CurrencyCode:  k.currency,
			ReceiptCount:  a.count,
			TotalAmount:   a.total.InexactFloat64(),
			TotalTaxSaved: a.tax.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrencyCode != out[j].CurrencyCode {
			return out[i].CurrencyCode < out[j].CurrencyCode
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// IsExtractionError reports whether err means the upload could not be turned into a receipt
func IsExtractionError(err error) bool {
	var parseErr *scanning.ParseError
	var validationErr *ValidationError
	return errors.As(err, &parseErr) || errors.As(err, &validationErr) || errors.Is(err, ErrNotAReceipt)
}
