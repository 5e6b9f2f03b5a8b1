// Package ocr recognises Tamil text in images and scanned PDFs.
//
// Tesseract support needs cgo and is compiled only with the "ocr" build tag.
// Without it the engine reports ErrOCRNotEnabled.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// ErrOCRNotEnabled is returned by the engine in builds without the ocr tag.
var ErrOCRNotEnabled = errors.New("ocr: binary built without tesseract support")

// ErrNoText means recognition succeeded but produced only whitespace.
var ErrNoText = errors.New("ocr: no text recognised")

// Engine recognises text in an encoded image (PNG, JPEG, TIFF, BMP, WebP or GIF).
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TesseractLanguage maps a BCP 47 tag such as "ta" or "ta-IN" to the ISO 639-3
// code Tesseract names its trained data after ("tam").
func TesseractLanguage(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("ocr: invalid language %q: %w", tag, err)
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return "", fmt.Errorf("ocr: language %q has no base language", tag)
	}
	code := base.ISO3()
	if code == "" {
		return "", fmt.Errorf("ocr: language %q has no ISO 639-3 code", tag)
	}
	return code, nil
}
