//go:build ocr

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs recognition through libtesseract. A client is created per call
// because gosseract clients are not safe for concurrent use.
type Tesseract struct {
	lang string
}

// NewTesseract returns an engine for the BCP 47 language tag.
func NewTesseract(tag string) (*Tesseract, error) {
	lang, err := TesseractLanguage(tag)
	if err != nil {
		return nil, err
	}
	return &Tesseract{lang: lang}, nil
}

// Recognize returns the raw recognised text.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.lang); err != nil {
		return "", fmt.Errorf("ocr: set language %s: %w", t.lang, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("ocr: load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognise: %w", err)
	}
	return text, nil
}

// Enabled reports whether this build can run OCR.
func Enabled() bool { return true }
