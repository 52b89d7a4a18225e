package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CategoryOther is the reserved fallback category. Every listing whose
// category guess matches nothing in the taxonomy lands here.
const CategoryOther = "其他"

// defaultCategories is the closed set of canonical subject categories,
// fixed at build time.
var defaultCategories = []string{
	"高等数学",
	"线性代数",
	"概率统计",
	"大学物理",
	"电子电路",
	"程序设计",
	"数据结构",
	"计算机网络",
}

// Taxonomy is the fixed, ordered set of canonical category labels plus
// the reserved fallback. It is never extended at runtime.
type Taxonomy struct {
	categories []string
}

// DefaultTaxonomy returns the built-in taxonomy
func DefaultTaxonomy() *Taxonomy {
	return newTaxonomy(defaultCategories)
}

// LoadTaxonomy reads a taxonomy override from a YAML file of the form:
//
//	categories:
//	  - 高等数学
//	  - 线性代数
//
// The fallback category is always appended and cannot be removed.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy file: %w", err)
	}

	var doc struct {
		Categories []string `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing taxonomy file: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy file %s lists no categories", path)
	}

	return newTaxonomy(doc.Categories), nil
}

func newTaxonomy(categories []string) *Taxonomy {
	t := &Taxonomy{categories: make([]string, 0, len(categories)+1)}
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || c == CategoryOther {
			continue
		}
		t.categories = append(t.categories, c)
	}
	t.categories = append(t.categories, CategoryOther)
	return t
}

// Categories returns the full ordered label set including the fallback
func (t *Taxonomy) Categories() []string {
	out := make([]string, len(t.categories))
	copy(out, t.categories)
	return out
}

// Canonical maps a free-text category guess to the taxonomy by exact,
// case-insensitive match. Anything else, including the empty string,
// resolves conservatively to the fallback; there is no fuzzy matching.
func (t *Taxonomy) Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, c := range t.categories {
		if strings.EqualFold(raw, c) {
			return c
		}
	}
	return CategoryOther
}
