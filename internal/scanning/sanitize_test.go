package scanning

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SanitizeJSON", func() {
	var (
		text string
		out  map[string]any
		err  error
	)

	JustBeforeEach(func() {
		out, err = SanitizeJSON(text)
	})

	When("the text is a well-formed object", func() {
		BeforeEach(func() {
			text = `{"merchant_name": "CVS", "line_items": [{"description": "Gauze", "total_price": 4.5}], "total_amount": 4.5, "tax_amount": null}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should match direct parsing", func() {
			var direct map[string]any
			Expect(json.Unmarshal([]byte(text), &direct)).To(Succeed())
			Expect(out).To(Equal(direct))
		})
	})

	When("the text is wrapped in a json code fence", func() {
		BeforeEach(func() {
			text = "```json\n{\"a\":1}\n```"
		})

		It("should extract the fenced object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(map[string]any{"a": float64(1)}))
		})
	})

	When("the fence is surrounded by prose", func() {
		BeforeEach(func() {
			text = "Here is the receipt:\n```JSON\n{\"a\":1}\n```\nand a second one\n```json\n{\"b\":2}\n```"
		})

		It("should take the first fenced block only", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(map[string]any{"a": float64(1)}))
		})
	})

	When("the trailing brace is missing", func() {
		BeforeEach(func() {
			text = `{"a":1`
		})

		It("should auto-close the object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(map[string]any{"a": float64(1)}))
		})
	})

	When("the leading brace is missing", func() {
		BeforeEach(func() {
			text = `  "a": 1, "b": "x"}  `
		})

		It("should prepend the brace", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveKeyWithValue("b", "x"))
		})
	})

	When("both braces are missing", func() {
		BeforeEach(func() {
			text = `"a": [1, 2]`
		})

		It("should wrap the text", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveKeyWithValue("a", []any{float64(1), float64(2)}))
		})
	})

	When("the text is not JSON at all", func() {
		BeforeEach(func() {
			text = `invalid json`
		})

		It("returns a ParseError", func() {
			var parseErr *ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
			Expect(parseErr.Text).To(Equal("{invalid json}"))
		})

		It("should not return a value", func() {
			Expect(out).To(BeNil())
		})
	})

	When("an array inside the object is truncated", func() {
		BeforeEach(func() {
			text = `{"items": [{"a": 1}, {"a": 2}`
		})

		It("does not repair beyond the outer braces", func() {
			var parseErr *ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
		})
	})

	When("the object has a trailing comma", func() {
		BeforeEach(func() {
			text = `{"a": 1,}`
		})

		It("returns a ParseError", func() {
			var parseErr *ParseError
			Expect(errors.As(err, &parseErr)).To(BeTrue())
		})
	})
})

var _ = Describe("NormalizeJSONText", func() {
	It("trims whitespace around an object", func() {
		Expect(NormalizeJSONText("\n\t {\"a\":1} \n")).To(Equal(`{"a":1}`))
	})

	It("leaves an unlabeled fence alone", func() {
		Expect(NormalizeJSONText("```\n{}\n```")).To(Equal("{```\n{}\n```}"))
	})

	It("wraps the JSON null literal", func() {
		Expect(NormalizeJSONText("null")).To(Equal("{null}"))
	})
})
