package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// recognizePrompt is the shared prompt used by all vision providers to
// transcribe spine text. The providers only transcribe; segmentation into
// books happens here, structuring happens in the extractor.
const recognizePrompt = `You are performing OCR on a photo of stacked book spines. The photo may contain several books; spine text may be rotated 90 degrees and printed in Chinese or English.

Transcribe ALL visible text exactly as it appears:
- One text fragment per line, preserving the original characters
- Keep fragments from the same spine together
- Put a line containing exactly ---BOOK_SEPARATOR--- between text belonging to visually distinct spines
- Do not translate, interpret, correct, or summarize anything
- Do not add commentary such as "The image contains"

If no text is readable, output nothing. Start immediately with the transcribed text.`

// imageToPNG converts any supported image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// HEIC/HEIF (common on phones) is not covered by Go's standard image package
	if IsHEIC(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, WEBP, HEIC, HEIF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// IsHEIC reports whether the data is in HEIC/HEIF format by checking the
// ftyp box brand.
func IsHEIC(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData normalizes the MIME type and converts the image to PNG
// if it is not one already. The vision providers only need PNG, so the
// returned MIME type is always "image/png".
func prepareImageData(imageData []byte, contentType string) ([]byte, string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if mimeType == "image/png" && !IsHEIC(imageData) {
		return imageData, "image/png", nil
	}

	pngData, err := imageToPNG(imageData, mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("converting image to PNG: %w", err)
	}
	return pngData, "image/png", nil
}
