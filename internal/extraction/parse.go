package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxCandidates bounds how many books one response may claim. A single
// shelf photo cannot plausibly contain more; anything above this is a
// misbehaving upstream and the whole response is treated as malformed.
const maxCandidates = 24

// wireBook is the strict expected shape of one upstream item. Unknown
// fields are ignored; known fields with the wrong JSON type fail the
// item's decode and the item is rejected.
type wireBook struct {
	Title       *string         `json:"title"`
	Author      *string         `json:"author"`
	Publisher   *string         `json:"publisher"`
	Edition     *string         `json:"edition"`
	Category    *string         `json:"category"`
	Condition   *string         `json:"condition"`
	Price       json.RawMessage `json:"price"`
	Description *string         `json:"description"`
}

// parseCandidates parses the structuring response against the expected
// shape: a JSON array of book objects. Items failing shape validation are
// dropped with a reason, never guessed at; partial records (title present,
// other fields null) are kept. A non-array response, unparseable JSON, or
// an implausible item count is an error, which callers count toward the
// single retry.
func parseCandidates(text string) ([]Candidate, []string, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON array boundaries - look for first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, nil, fmt.Errorf("no JSON array found in response")
	}

	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, nil, fmt.Errorf("invalid JSON array in response")
	}

	text = text[startIdx : endIdx+1]

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	if len(items) > maxCandidates {
		return nil, nil, fmt.Errorf("response claims %d books, limit is %d", len(items), maxCandidates)
	}

	candidates := make([]Candidate, 0, len(items))
	var rejected []string
	for i, item := range items {
		var wb wireBook
		if err := json.Unmarshal(item, &wb); err != nil {
			rejected = append(rejected, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		if wb.Title == nil || strings.TrimSpace(*wb.Title) == "" {
			rejected = append(rejected, fmt.Sprintf("item %d: missing title", i))
			continue
		}

		candidates = append(candidates, Candidate{
			Title:       *wb.Title,
			Author:      stringValue(wb.Author),
			Publisher:   stringValue(wb.Publisher),
			Edition:     stringValue(wb.Edition),
			Category:    stringValue(wb.Category),
			Condition:   stringValue(wb.Condition),
			Price:       priceString(wb.Price),
			Description: stringValue(wb.Description),
		})
	}

	return candidates, rejected, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// priceString renders the upstream price field, which may arrive as a
// JSON number, a string, or null, as a raw string for the normalizer to
// coerce.
func priceString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	return ""
}
