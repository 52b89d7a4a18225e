package extraction

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func blankImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// webpBytes is a valid 1x1 lossy WebP image
var webpBytes = func() []byte {
	data, err := base64.StdEncoding.DecodeString(
		"UklGRiIAAABXRUJQVlA4IBYAAAAwAQCdASoBAAEADsD+JaQAA3AAAAAA")
	if err != nil {
		panic(err)
	}
	return data
}()

var _ = Describe("prepareImageData", func() {
	When("the payload is WebP", func() {
		It("should decode it and re-encode as PNG", func() {
			data, mimeType, err := prepareImageData(webpBytes, "image/webp")
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))

			img, err := png.Decode(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(1))
			Expect(img.Bounds().Dy()).To(Equal(1))
		})
	})

	When("the payload is already PNG", func() {
		It("should pass the bytes through unchanged", func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, blankImage(2, 2))).To(Succeed())

			data, mimeType, err := prepareImageData(buf.Bytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))
			Expect(data).To(Equal(buf.Bytes()))
		})
	})

	When("the payload is not a decodable image", func() {
		It("should return an error", func() {
			_, _, err := prepareImageData([]byte("%PDF-1.4 not an image"), "application/pdf")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("IsHEIC", func() {
	It("should detect the ftyp brands", func() {
		for _, brand := range []string{"heic", "heif", "mif1", "msf1"} {
			data := append([]byte{0, 0, 0, 24}, []byte("ftyp"+brand+" padding")...)
			Expect(IsHEIC(data)).To(BeTrue(), "brand %s", brand)
		}
	})

	It("should reject other payloads", func() {
		Expect(IsHEIC(webpBytes)).To(BeFalse())
		Expect(IsHEIC([]byte("short"))).To(BeFalse())
	})
})
