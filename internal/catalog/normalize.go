package catalog

import (
	"strconv"
	"strings"

	"github.com/campusbooks/spinescan/internal/extraction"
)

// defaultCondition is assumed when the seller states nothing about wear
const defaultCondition = "良好"

// NormalizeCandidate validates and cleans one extraction candidate into a
// listing draft (no ID, owner or timestamps yet). Rules, in order: trim
// every string field; drop the candidate when the title trims to empty;
// map the category guess onto the taxonomy; coerce the price, where
// anything non-numeric or negative becomes absent rather than an error.
// Returns false when the candidate is dropped.
func NormalizeCandidate(c extraction.Candidate, taxonomy *Taxonomy) (*Book, bool) {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return nil, false
	}

	condition := strings.TrimSpace(c.Condition)
	if condition == "" {
		condition = defaultCondition
	}

	return &Book{
		Title:       title,
		Author:      strings.TrimSpace(c.Author),
		Publisher:   strings.TrimSpace(c.Publisher),
		Edition:     strings.TrimSpace(c.Edition),
		Category:    taxonomy.Canonical(c.Category),
		Condition:   condition,
		Price:       CoercePrice(c.Price),
		Description: strings.TrimSpace(c.Description),
	}, true
}

// CoercePrice turns a numeric-looking string into a non-negative price.
// Currency prefixes the upstream tends to leave in ("¥15.5", "15元") are
// stripped; negatives and non-numerics become absent.
func CoercePrice(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.TrimSuffix(s, "元")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}
