//go:build !ocr

package ocr

import "context"

// Tesseract is a placeholder in builds without the ocr tag.
type Tesseract struct {
	lang string
}

// NewTesseract validates the language so configuration errors surface in every build.
func NewTesseract(tag string) (*Tesseract, error) {
	lang, err := TesseractLanguage(tag)
	if err != nil {
		return nil, err
	}
	return &Tesseract{lang: lang}, nil
}

// Recognize always fails with ErrOCRNotEnabled.
func (t *Tesseract) Recognize(context.Context, []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// Enabled reports whether this build can run OCR.
func Enabled() bool { return false }
