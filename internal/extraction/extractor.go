package extraction

import "context"

// Candidate is one possibly-partial book record produced by the
// structuring capability, prior to normalization. All fields are raw
// strings exactly as the upstream returned them; absent fields are empty.
type Candidate struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	Edition     string `json:"edition"`
	Category    string `json:"category"`
	Condition   string `json:"condition"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// Extractor converts raw recognized text into structured book candidates.
// The taxonomy is passed through to the upstream prompt so category
// guesses land near the closed set; the upstream output is still treated
// as untrusted and validated item by item.
type Extractor interface {
	Extract(ctx context.Context, rawText string, taxonomy []string) ([]Candidate, error)
	// Close releases provider resources
	Close() error
}

// ExtractionError wraps a terminal structuring failure (transport error,
// timeout, or a malformed response that survived the single retry). The
// raw recognized text is preserved so callers can fall back to manual
// entry.
type ExtractionError struct {
	RawText string
	Err     error
}

func (e *ExtractionError) Error() string {
	return "extracting book candidates: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
