package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultDPI = 144

// Rasterizer renders the first page of a PDF as PNG.
type Rasterizer interface {
	FirstPage(ctx context.Context, pdf []byte) ([]byte, error)
}

// PDFToPPM shells out to poppler's pdftoppm.
type PDFToPPM struct {
	// Binary defaults to "pdftoppm" on PATH.
	Binary string
	DPI    int
}

// FirstPage writes pdf to a scratch directory and renders page one.
func (p PDFToPPM) FirstPage(ctx context.Context, pdf []byte) ([]byte, error) {
	if len(pdf) == 0 {
		return nil, errors.New("ocr: pdf is empty")
	}
	binary := p.Binary
	if binary == "" {
		binary = "pdftoppm"
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}

	dir, err := os.MkdirTemp("", "braille-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("ocr: scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("ocr: write pdf: %w", err)
	}
	outRoot := filepath.Join(dir, "page")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary,
		"-png", "-r", strconv.Itoa(dpi), "-f", "1", "-l", "1", "-singlefile",
		input, outRoot)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ocr: %s: %w: %s", binary, err, msg)
		}
		return nil, fmt.Errorf("ocr: %s: %w", binary, err)
	}

	png, err := os.ReadFile(outRoot + ".png")
	if err != nil {
		return nil, fmt.Errorf("ocr: read rendered page: %w", err)
	}
	return png, nil
}
