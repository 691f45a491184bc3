package main

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zombor/receipt-tax-tracker/internal/config"
	"github.com/zombor/receipt-tax-tracker/internal/receipt"
	"github.com/zombor/receipt-tax-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		var usageErr *config.UsageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "%s\n", usageErr.Help)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger(os.Stderr))

	// Initialize database
	slog.Info("Initializing database...", "path", cfg.DBPath)
	db, err := receipt.NewBoltDB(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize the extraction model
	slog.Info("Initializing extraction model...", "generator", cfg.Generator, "model", cfg.ExtractionModel())
	extractor, err := newGenerator(cfg, cfg.ExtractionModel(), cfg.ScanTimeout)
	if err != nil {
		slog.Error("Failed to initialize extraction model", "generator", cfg.Generator, "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize the tax classifier
	var classifier receipt.TaxClassifier
	if cfg.DisableClassification {
		slog.Info("Tax classification disabled")
		classifier = receipt.DisabledClassifier{}
	} else {
		slog.Info("Initializing tax classifier...", "model", cfg.TaxModel())
		taxGen, err := newGenerator(cfg, cfg.TaxModel(), cfg.ClassifyTimeout)
		if err != nil {
			slog.Error("Failed to initialize tax classifier", "error", err)
			os.Exit(1)
		}
		defer taxGen.Close()
		classifier = receipt.NewGenerativeClassifier(taxGen)
	}

	// Initialize storage
	slog.Info("Initializing storage...", "path", cfg.StoragePath)
	store, err := receipt.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := receipt.NewService(db, scanning.NewVisionScanner(extractor), classifier, store)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: cfg.AuthUser,
		Password: cfg.AuthPass,
	}
	server := receipt.NewServer(receiptService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.AuthUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// newGenerator builds the configured model backend for modelName
func newGenerator(cfg *config.Config, modelName string, timeout time.Duration) (scanning.Generator, error) {
	switch cfg.Generator {
	case "gemini":
		return scanning.NewGemini(cfg.GeminiKey, modelName, timeout)
	case "ollama":
		return scanning.NewOllama(cfg.OllamaURL, modelName, timeout)
	default:
		return nil, fmt.Errorf("invalid generator %q", cfg.Generator)
	}
}
