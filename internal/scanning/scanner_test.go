package scanning

import (
	"bytes"
	"context"
	"errors"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeGenerator records the last call and returns a canned answer
type fakeGenerator struct {
	text   string
	err    error
	prompt string
	image  *Image
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, image *Image) (string, error) {
	f.prompt = prompt
	f.image = image
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeGenerator) Close() error {
	return nil
}

var _ = Describe("VisionScanner", func() {
	var (
		gen         *fakeGenerator
		scanner     *VisionScanner
		data        []byte
		contentType string
		text        string
		err         error
	)

	BeforeEach(func() {
		gen = &fakeGenerator{text: `{"merchant_name": "CVS"}`}
		scanner = NewVisionScanner(gen)

		var buf bytes.Buffer
		Expect(png.Encode(&buf, testImage())).To(Succeed())
		data = buf.Bytes()
		contentType = "image/png"
	})

	JustBeforeEach(func() {
		text, err = scanner.ScanReceipt(context.Background(), data, contentType)
	})

	When("the generator answers", func() {
		It("should return the raw answer", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"merchant_name": "CVS"}`))
		})

		It("should send the extraction prompt with the image", func() {
			Expect(gen.prompt).To(ContainSubstring("merchant_name"))
			Expect(gen.prompt).To(ContainSubstring("JSON literal null"))
			Expect(gen.prompt).To(ContainSubstring(`"20% off"`))
			Expect(gen.prompt).NotTo(ContainSubstring("%!"))
			for _, category := range ExpenseCategories {
				Expect(gen.prompt).To(ContainSubstring(category))
			}
			Expect(gen.image).NotTo(BeNil())
			Expect(gen.image.Data).To(Equal(data))
		})
	})

	When("the generator fails", func() {
		var setupErr error

		BeforeEach(func() {
			setupErr = errors.New("quota exceeded")
			gen.err = setupErr
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(setupErr))
		})
	})

	When("the image cannot be prepared", func() {
		BeforeEach(func() {
			data = []byte("garbage")
			contentType = "image/jpeg"
		})

		It("does not call the generator", func() {
			Expect(err).To(HaveOccurred())
			Expect(gen.prompt).To(BeEmpty())
		})
	})
})
