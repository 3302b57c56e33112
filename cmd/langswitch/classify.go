package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/langswitch/internal/switcher"
	"github.com/dshills/langswitch/internal/syntax"
)

var (
	classifyOffset int
	classifyJSON   bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Report whether an offset lies inside a math region",
	Long: `Parses a Markdown document (a file, or stdin when the file is "-" or
omitted) and prints the language the caret at --offset would select.
A negative offset means the end of the document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().IntVarP(&classifyOffset, "offset", "o", -1, "Caret byte offset")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print JSON including every math region")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	parser, err := syntax.ParserByName(cfg.Parser)
	if err != nil {
		return err
	}

	var src []byte
	if len(args) == 0 || args[0] == "-" {
		src, err = io.ReadAll(cmd.InOrStdin())
	} else {
		src, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	offset := classifyOffset
	if offset < 0 || offset > len(src) {
		offset = len(src)
	}

	tree, err := parser.Parse(cmd.Context(), src)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	inside := syntax.Classify(tree, offset)
	lang := switcher.LanguageFor(inside)

	out := cmd.OutOrStdout()
	if !classifyJSON {
		fmt.Fprintf(out, "offset %d: inside_math=%t language=%s\n", offset, inside, lang)
		return nil
	}

	line := "{}"
	line, _ = sjson.Set(line, "offset", offset)
	line, _ = sjson.Set(line, "inside_math", inside)
	line, _ = sjson.Set(line, "language", lang.String())
	line, _ = sjson.SetRaw(line, "regions", "[]")
	for _, n := range syntax.MathRegions(tree) {
		line, _ = sjson.Set(line, "regions.-1", map[string]any{
			"tag":   n.Tag(),
			"start": n.Start(),
			"end":   n.End(),
		})
	}
	fmt.Fprintln(out, line)
	return nil
}
