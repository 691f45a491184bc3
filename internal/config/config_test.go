package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parse", func() {
	var (
		args []string
		cfg  *Config
		err  error
	)

	BeforeEach(func() {
		args = nil
		GinkgoT().Setenv("GEMINI_API_KEY", "")
	})

	JustBeforeEach(func() {
		cfg, err = Parse(args)
	})

	When("no flags are given", func() {
		It("should use the defaults", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(8080))
			Expect(cfg.DBPath).To(Equal("receipts.db"))
			Expect(cfg.Generator).To(Equal("gemini"))
			Expect(cfg.GeminiModel).To(Equal("gemini-2.5-pro"))
			Expect(cfg.ScanTimeout).To(Equal(60 * time.Second))
			Expect(cfg.ClassifyTimeout).To(Equal(30 * time.Second))
			Expect(cfg.DisableClassification).To(BeFalse())
			Expect(cfg.LogLevel).To(Equal("info"))
		})
	})

	When("flags are given", func() {
		BeforeEach(func() {
			args = []string{"--port", "9090", "--generator", "ollama", "--ollama-model", "qwen2-vl", "--no-classify", "--classify-timeout", "5s"}
		})

		It("should use them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(9090))
			Expect(cfg.Generator).To(Equal("ollama"))
			Expect(cfg.ExtractionModel()).To(Equal("qwen2-vl"))
			Expect(cfg.DisableClassification).To(BeTrue())
			Expect(cfg.ClassifyTimeout).To(Equal(5 * time.Second))
		})
	})

	When("environment variables are set", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("RECEIPT_TRACKER_PORT", "7070")
			GinkgoT().Setenv("RECEIPT_TRACKER_AUTH_USER", "admin")
		})

		It("should read them with the prefix", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Port).To(Equal(7070))
			Expect(cfg.AuthUser).To(Equal("admin"))
		})
	})

	When("only GEMINI_API_KEY is set", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("GEMINI_API_KEY", "secret")
		})

		It("should fall back to it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.GeminiKey).To(Equal("secret"))
		})
	})

	When("an unknown flag is given", func() {
		BeforeEach(func() {
			args = []string{"--bogus"}
		})

		It("returns a usage error with help text", func() {
			var usageErr *UsageError
			Expect(errors.As(err, &usageErr)).To(BeTrue())
			Expect(usageErr.Help).To(ContainSubstring("gemini-key"))
		})
	})
})

var _ = Describe("Config", func() {
	var cfg *Config

	BeforeEach(func() {
		cfg = &Config{
			Port:        8080,
			Generator:   "gemini",
			GeminiKey:   "key",
			GeminiModel: "gemini-2.5-pro",
			OllamaModel: "llava",
			LogLevel:    "info",
			LogFormat:   "text",
		}
	})

	Describe("Validate", func() {
		It("should accept a complete config", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should require a Gemini key for gemini", func() {
			cfg.GeminiKey = ""
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("gemini API key is required")))
		})

		It("should not require a Gemini key for ollama", func() {
			cfg.GeminiKey = ""
			cfg.Generator = "ollama"
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject an unknown generator", func() {
			cfg.Generator = "openai"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("invalid generator")))
		})

		It("should reject an unknown log level", func() {
			cfg.LogLevel = "chatty"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("invalid log level")))
		})

		It("should reject an unknown log format", func() {
			cfg.LogFormat = "xml"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a password without a user", func() {
			cfg.AuthPass = "secret"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("without an auth user")))
		})

		It("should accept a user with a password", func() {
			cfg.AuthUser = "admin"
			cfg.AuthPass = "secret"
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject an out of range port", func() {
			cfg.Port = 70000
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})

	Describe("TaxModel", func() {
		It("should reuse the extraction model by default", func() {
			Expect(cfg.TaxModel()).To(Equal("gemini-2.5-pro"))
		})

		It("should prefer the classifier model", func() {
			cfg.ClassifierModel = "gemini-2.5-flash"
			Expect(cfg.TaxModel()).To(Equal("gemini-2.5-flash"))
		})
	})

	Describe("Logger", func() {
		It("should write JSON when asked", func() {
			var buf bytes.Buffer
			cfg.LogFormat = "json"
			cfg.Logger(&buf).Info("hello", "id", "r1")

			var entry map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
			Expect(entry).To(HaveKeyWithValue("msg", "hello"))
			Expect(entry).To(HaveKeyWithValue("id", "r1"))
		})

		It("should drop records below the level", func() {
			var buf bytes.Buffer
			cfg.LogLevel = "warn"
			cfg.Logger(&buf).Info("hidden")
			Expect(buf.String()).To(BeEmpty())
		})
	})
})
