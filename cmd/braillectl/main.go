// Command braillectl transliterates Tamil text to Braille from the command line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tamil-braille/api/internal/braille"
)

// CLI defines the command-line interface.
type CLI struct {
	TablePath string `name:"table" help:"Mapping table JSON (default: embedded table)" type:"existingfile"`

	Convert  ConvertCmd `cmd:"" help:"Convert Tamil text to Braille"`
	Render   RenderCmd  `cmd:"" help:"Render cells written as dot digits, e.g. 125 0 13"`
	Cells    CellsCmd   `cmd:"" help:"Print dot matrices for converted text"`
	TableCmd TableCmd   `cmd:"" name:"table" help:"Mapping table utilities"`
	Extract  ExtractCmd `cmd:"" help:"Extract text from a TXT, image or PDF file"`
}

// runContext is bound into every command's Run method.
type runContext struct {
	stdin     io.Reader
	stdout    io.Writer
	tablePath string
}

func (c *runContext) converter() (*braille.Converter, error) {
	table, err := braille.LoadTableOrDefault(c.tablePath)
	if err != nil {
		return nil, fmt.Errorf("load mapping table: %w", err)
	}
	return braille.NewConverter(table)
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "braillectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("braillectl"),
		kong.Description("Tamil to six-dot Braille transliteration."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&runContext{stdin: stdin, stdout: stdout, tablePath: cli.TablePath})
}
