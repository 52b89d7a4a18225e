package extraction

import "context"

// Recognizer converts a spine photo into raw text. The returned text is an
// unordered bag of line fragments; multiple spines appear in arbitrary
// reading order with "---BOOK_SEPARATOR---" between visually distinct
// spines when the provider can tell them apart. Low-confidence or noisy
// text is returned as-is; only structural failures (unreadable input,
// upstream unavailability, timeout) produce an error.
type Recognizer interface {
	Recognize(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close releases provider resources
	Close() error
}

// RecognitionError wraps a structural failure of the text-recognition
// capability. No raw text is available when this is returned.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return "recognizing spine text: " + e.Err.Error()
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
