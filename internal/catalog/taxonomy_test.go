package catalog

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Taxonomy", func() {
	var taxonomy *Taxonomy

	BeforeEach(func() {
		taxonomy = DefaultTaxonomy()
	})

	Describe("Categories", func() {
		It("should end with the reserved fallback", func() {
			categories := taxonomy.Categories()
			Expect(categories[len(categories)-1]).To(Equal(CategoryOther))
		})

		It("should contain the canonical subjects in order", func() {
			Expect(taxonomy.Categories()).To(Equal([]string{
				"高等数学", "线性代数", "概率统计", "大学物理",
				"电子电路", "程序设计", "数据结构", "计算机网络", CategoryOther,
			}))
		})

		It("should return a copy", func() {
			categories := taxonomy.Categories()
			categories[0] = "mutated"
			Expect(taxonomy.Categories()[0]).To(Equal("高等数学"))
		})
	})

	Describe("Canonical", func() {
		It("should preserve every taxonomy member exactly", func() {
			for _, c := range taxonomy.Categories() {
				Expect(taxonomy.Canonical(c)).To(Equal(c))
			}
		})

		It("should map the fallback to itself", func() {
			Expect(taxonomy.Canonical(CategoryOther)).To(Equal(CategoryOther))
		})

		It("should map anything unknown to the fallback", func() {
			Expect(taxonomy.Canonical("哲学")).To(Equal(CategoryOther))
			Expect(taxonomy.Canonical("")).To(Equal(CategoryOther))
			Expect(taxonomy.Canonical("数学")).To(Equal(CategoryOther))
		})

		It("should trim before matching", func() {
			Expect(taxonomy.Canonical(" 高等数学 ")).To(Equal("高等数学"))
		})
	})

	Describe("LoadTaxonomy", func() {
		var (
			dir  string
			path string
		)

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			path = filepath.Join(dir, "taxonomy.yaml")
		})

		When("the file is valid", func() {
			BeforeEach(func() {
				content := "categories:\n  - 文学\n  - 历史\n"
				Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
			})

			It("should replace the canonical set and keep the fallback", func() {
				loaded, err := LoadTaxonomy(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(loaded.Categories()).To(Equal([]string{"文学", "历史", CategoryOther}))
			})
		})

		When("the file lists no categories", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(path, []byte("categories: []\n"), 0644)).To(Succeed())
			})

			It("should return an error", func() {
				_, err := LoadTaxonomy(path)
				Expect(err).To(HaveOccurred())
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				_, err := LoadTaxonomy(filepath.Join(dir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})
	})
})

var _ = Describe("ResolvePrincipal", func() {
	It("should prefer the durable declared ID", func() {
		p, err := ResolvePrincipal("20230001", "some-token")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(Principal("member:20230001")))
	})

	It("should fall back to the ephemeral token", func() {
		p, err := ResolvePrincipal("", "abc-123")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(Principal("guest:abc-123")))
	})

	It("should be deterministic for the same declared value", func() {
		a, _ := ResolvePrincipal("20230001", "")
		b, _ := ResolvePrincipal("20230001", "different-token")
		Expect(a).To(Equal(b))
	})

	It("should fail when nothing is declared", func() {
		_, err := ResolvePrincipal("  ", "")
		Expect(err).To(MatchError(ErrNoIdentity))
	})
})
