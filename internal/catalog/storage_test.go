package catalog

import (
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pngBytes is a minimal payload carrying the PNG signature
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), []byte("fake image body")...)

// heicBytes carries the ftyp/heic brand at the standard offset
var heicBytes = append([]byte{0, 0, 0, 24}, []byte("ftypheic fake image body")...)

var _ = Describe("LocalImageStore", func() {
	var (
		tmpDir string
		db     *mockDB
		store  *LocalImageStore
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		db = newMockDB()
		var err error
		store, err = NewLocalImageStore(tmpDir, 1<<20, db)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Put", func() {
		When("the payload is a PNG", func() {
			It("should store and return metadata", func() {
				img, err := store.Put(pngBytes, "shelf.png", "member:alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(img.ID).NotTo(BeEmpty())
				Expect(img.ContentType).To(Equal("image/png"))
				Expect(img.Owner).To(Equal("member:alice"))
				Expect(img.Size).To(Equal(int64(len(pngBytes))))
			})

			It("should make the image immediately retrievable", func() {
				img, err := store.Put(pngBytes, "shelf.png", "member:alice")
				Expect(err).NotTo(HaveOccurred())

				data, meta, err := store.Get(img.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal(pngBytes))
				Expect(meta.ID).To(Equal(img.ID))
			})

			It("should assign a unique file ID per upload", func() {
				seen := map[string]bool{}
				for i := 0; i < 50; i++ {
					img, err := store.Put(pngBytes, "shelf.png", "member:alice")
					Expect(err).NotTo(HaveOccurred())
					Expect(seen[img.ID]).To(BeFalse())
					seen[img.ID] = true
				}
			})
		})

		When("the payload is HEIC", func() {
			It("should accept it with the sniffed type", func() {
				img, err := store.Put(heicBytes, "photo.heic", "member:alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(img.ContentType).To(Equal("image/heic"))
			})
		})

		When("the payload is WebP", func() {
			It("should accept it with the sniffed type", func() {
				webp := append([]byte("RIFF\x24\x00\x00\x00WEBPVP8 "), []byte("fake image body")...)
				img, err := store.Put(webp, "photo.webp", "member:alice")
				Expect(err).NotTo(HaveOccurred())
				Expect(img.ContentType).To(Equal("image/webp"))
			})
		})

		When("the payload is not an image", func() {
			It("should reject it with a ValidationError and store nothing", func() {
				_, err := store.Put([]byte("%PDF-1.4 not an image"), "doc.pdf", "member:alice")
				var valErr *ValidationError
				Expect(errors.As(err, &valErr)).To(BeTrue())

				entries, readErr := os.ReadDir(tmpDir)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(entries).To(BeEmpty())
				Expect(db.images).To(BeEmpty())
			})
		})

		When("the payload is empty", func() {
			It("should reject it with a ValidationError", func() {
				_, err := store.Put(nil, "empty.png", "member:alice")
				var valErr *ValidationError
				Expect(errors.As(err, &valErr)).To(BeTrue())
			})
		})

		When("the payload exceeds the byte limit", func() {
			BeforeEach(func() {
				var err error
				store, err = NewLocalImageStore(tmpDir, 8, db)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should reject it with a ValidationError before storage", func() {
				_, err := store.Put(pngBytes, "big.png", "member:alice")
				var valErr *ValidationError
				Expect(errors.As(err, &valErr)).To(BeTrue())

				entries, readErr := os.ReadDir(tmpDir)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(entries).To(BeEmpty())
			})
		})
	})

	Describe("Get", func() {
		When("the file ID is unknown", func() {
			It("should fail with ErrNotFound", func() {
				_, _, err := store.Get("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})
})
