package catalog

import (
	"strconv"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/campusbooks/spinescan/internal/extraction"
)

var _ = Describe("NormalizeCandidate", func() {
	var (
		candidate extraction.Candidate
		taxonomy  *Taxonomy
		draft     *Book
		ok        bool
	)

	BeforeEach(func() {
		taxonomy = DefaultTaxonomy()
		candidate = extraction.Candidate{
			Title:     "  高等数学 ",
			Author:    " 同济大学数学系 ",
			Publisher: "同济大学出版社",
			Edition:   "第七版",
			Category:  "高等数学",
			Price:     "15.5",
		}
	})

	JustBeforeEach(func() {
		draft, ok = NormalizeCandidate(candidate, taxonomy)
	})

	When("the candidate is complete", func() {
		It("should keep it", func() {
			Expect(ok).To(BeTrue())
		})

		It("should trim every string field", func() {
			Expect(draft.Title).To(Equal("高等数学"))
			Expect(draft.Author).To(Equal("同济大学数学系"))
		})

		It("should preserve a taxonomy category exactly", func() {
			Expect(draft.Category).To(Equal("高等数学"))
		})

		It("should coerce the price to a number", func() {
			Expect(draft.Price).To(HaveValue(Equal(15.5)))
		})

		It("should default the condition", func() {
			Expect(draft.Condition).To(Equal("良好"))
		})
	})

	When("the title trims to empty", func() {
		BeforeEach(func() {
			candidate.Title = "   "
		})

		It("should drop the candidate", func() {
			Expect(ok).To(BeFalse())
			Expect(draft).To(BeNil())
		})
	})

	When("the category matches with different case", func() {
		BeforeEach(func() {
			taxonomy = newTaxonomy([]string{"Programming", "Networks"})
			candidate.Category = "pRoGrAmMiNg"
		})

		It("should return the canonical casing", func() {
			Expect(draft.Category).To(Equal("Programming"))
		})
	})

	When("the category matches nothing", func() {
		BeforeEach(func() {
			candidate.Category = "高等 数学" // near-miss, no fuzzy matching
		})

		It("should fall back to the reserved category", func() {
			Expect(draft.Category).To(Equal(CategoryOther))
		})
	})

	When("the category is empty", func() {
		BeforeEach(func() {
			candidate.Category = ""
		})

		It("should fall back to the reserved category", func() {
			Expect(draft.Category).To(Equal(CategoryOther))
		})
	})

	When("normalizing an already-normalized candidate", func() {
		It("should be idempotent", func() {
			again, okAgain := NormalizeCandidate(extraction.Candidate{
				Title:       draft.Title,
				Author:      draft.Author,
				Publisher:   draft.Publisher,
				Edition:     draft.Edition,
				Category:    draft.Category,
				Condition:   draft.Condition,
				Price:       strconv.FormatFloat(*draft.Price, 'f', -1, 64),
				Description: draft.Description,
			}, taxonomy)
			Expect(okAgain).To(BeTrue())
			Expect(again).To(Equal(draft))
		})
	})
})

var _ = Describe("CoercePrice", func() {
	DescribeTable("price inputs",
		func(raw string, expected any) {
			price := CoercePrice(raw)
			if expected == nil {
				Expect(price).To(BeNil())
			} else {
				Expect(price).To(HaveValue(Equal(expected)))
			}
		},
		Entry("plain decimal", "15.5", 15.5),
		Entry("integer", "20", 20.0),
		Entry("zero", "0", 0.0),
		Entry("yuan prefix", "¥18", 18.0),
		Entry("fullwidth yuan prefix", "￥18", 18.0),
		Entry("yuan suffix", "12元", 12.0),
		Entry("surrounding spaces", " 9.9 ", 9.9),
		Entry("empty", "", nil),
		Entry("whitespace only", "   ", nil),
		Entry("negative", "-3", nil),
		Entry("non-numeric", "面议", nil),
		Entry("mixed garbage", "15块5", nil),
	)
})
