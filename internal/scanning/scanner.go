package scanning

import (
	"context"
	"fmt"
)

// Image is a receipt image ready to hand to a model.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator is a text-generation backend. The returned text is whatever the
// model produced; callers must not assume it is valid JSON.
type Generator interface {
	// Generate runs prompt, optionally with an attached image, and returns the raw text
	Generate(ctx context.Context, prompt string, image *Image) (string, error)
	// Close releases any resources held by the backend
	Close() error
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and returns the model's raw answer
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (string, error)
}

// VisionScanner extracts receipts by sending the image and the extraction
// prompt to a Generator.
type VisionScanner struct {
	gen Generator
}

// NewVisionScanner creates a Scanner backed by gen
func NewVisionScanner(gen Generator) *VisionScanner {
	return &VisionScanner{gen: gen}
}

// ScanReceipt converts the upload to PNG and asks the model to extract it
func (v *VisionScanner) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (string, error) {
	img, err := PrepareImage(imageData, contentType)
	if err != nil {
		return "", err
	}

	text, err := v.gen.Generate(ctx, receiptScanPrompt, img)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}
	return text, nil
}
