package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tamil-braille/api/internal/braille"
	"github.com/tamil-braille/api/internal/platform/ocr"
	"github.com/tamil-braille/api/internal/services"
)

// ConvertCmd prints the Braille for TEXT, --file, or stdin.
type ConvertCmd struct {
	Text   string `arg:"" optional:"" help:"Tamil text (default: --file or stdin)"`
	File   string `name:"file" short:"f" help:"Read the text from a file" type:"existingfile"`
	Report bool   `name:"report" help:"List characters the table could not map"`
}

func (c *ConvertCmd) Run(ctx *runContext) error {
	text, err := c.input(ctx.stdin)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("no text to convert")
	}
	conv, err := ctx.converter()
	if err != nil {
		return err
	}

	result := conv.ConvertDetailed(text)
	fmt.Fprintln(ctx.stdout, braille.Render(result.Cells))
	if c.Report {
		if len(result.Unmapped) == 0 {
			fmt.Fprintln(ctx.stdout, "unmapped: none")
		}
		for _, miss := range result.Unmapped {
			fmt.Fprintf(ctx.stdout, "unmapped: position %d %U %q\n", miss.Position, miss.Char, miss.Char)
		}
	}
	return nil
}

func (c *ConvertCmd) input(stdin io.Reader) (string, error) {
	switch {
	case c.Text != "":
		return c.Text, nil
	case c.File != "":
		data, err := os.ReadFile(c.File)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case stdin != nil:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return "", nil
}

// RenderCmd turns dot-digit cells into Braille characters.
type RenderCmd struct {
	Dots []string `arg:"" help:"Cells as dot digits; 0 is the blank cell"`
}

func (c *RenderCmd) Run(ctx *runContext) error {
	seq := make(braille.Sequence, 0, len(c.Dots))
	for _, arg := range c.Dots {
		cell, err := parseDotDigits(arg)
		if err != nil {
			return err
		}
		seq = append(seq, cell)
	}
	fmt.Fprintln(ctx.stdout, braille.Render(seq))
	return nil
}

func parseDotDigits(arg string) (braille.Cell, error) {
	if arg == "0" {
		return braille.Blank, nil
	}
	dots := make([]int, 0, len(arg))
	for _, r := range arg {
		if r < '1' || r > '8' {
			return 0, fmt.Errorf("cell %q: %w", arg, braille.ErrInvalidDot)
		}
		dots = append(dots, int(r-'0'))
	}
	if len(dots) == 0 {
		return 0, fmt.Errorf("cell %q: no dots", arg)
	}
	cell, err := braille.NewCell(dots...)
	if err != nil {
		return 0, fmt.Errorf("cell %q: %w", arg, err)
	}
	return cell, nil
}

// CellsCmd prints each converted cell as a grid of raised and flat dots.
type CellsCmd struct {
	Text string `arg:"" help:"Tamil text"`
}

func (c *CellsCmd) Run(ctx *runContext) error {
	conv, err := ctx.converter()
	if err != nil {
		return err
	}
	seq := conv.Convert(c.Text)
	rows := braille.RowsFor(seq)
	for i, cell := range seq {
		if i > 0 {
			fmt.Fprintln(ctx.stdout)
		}
		fmt.Fprintf(ctx.stdout, "%s %v\n", cell, cell.Dots())
		for _, row := range braille.ToMatrix(cell, rows) {
			fmt.Fprintf(ctx.stdout, "%s%s\n", dotGlyph(row[0]), dotGlyph(row[1]))
		}
	}
	return nil
}

func dotGlyph(raised bool) string {
	if raised {
		return "●"
	}
	return "○"
}

// TableCmd groups mapping table utilities.
type TableCmd struct {
	Validate TableValidateCmd `cmd:"" help:"Load a mapping table and report its size"`
}

// TableValidateCmd loads PATH, the global --table, or the embedded table.
type TableValidateCmd struct {
	Path string `arg:"" optional:"" help:"Mapping table JSON" type:"existingfile"`
}

func (c *TableValidateCmd) Run(ctx *runContext) error {
	path := c.Path
	if path == "" {
		path = ctx.tablePath
	}
	table, err := braille.LoadTableOrDefault(path)
	if err != nil {
		return err
	}
	source := path
	if source == "" {
		source = "embedded"
	}
	fmt.Fprintf(ctx.stdout, "%s: ok, %d entries, longest key %d code points\n", source, table.Len(), table.MaxKeyLength())
	return nil
}

// ExtractCmd runs text acquisition against a local file.
type ExtractCmd struct {
	File     string `arg:"" help:"TXT, image or PDF file" type:"existingfile"`
	Language string `name:"lang" default:"ta" help:"OCR language as a BCP 47 tag"`
	DPI      int    `name:"dpi" default:"144" help:"PDF rasterisation resolution"`
}

func (c *ExtractCmd) Run(ctx *runContext) error {
	engine, err := ocr.NewTesseract(c.Language)
	if err != nil {
		return err
	}
	svc, err := services.NewExtractionService(services.ExtractionServiceDeps{
		OCR:        engine,
		Rasterizer: ocr.PDFToPPM{DPI: c.DPI},
	})
	if err != nil {
		return err
	}

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	result, err := svc.Extract(context.Background(), services.ExtractionUpload{
		FileName: filepath.Base(c.File),
		Size:     info.Size(),
		Body:     f,
	})
	if err != nil {
		var extractionErr *services.ExtractionError
		if errors.As(err, &extractionErr) {
			return fmt.Errorf("%s: %w", extractionErr.Message, err)
		}
		return err
	}
	fmt.Fprintln(ctx.stdout, result.Text)
	return nil
}
