package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/claire/internal/textkit"
)

func newSimplifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simplify [text|-]",
		Short: "Simplify, summarise and mind-map text offline",
		Long: `Print the simplified text, then a short local summary and a mind map
built from it. Nothing is sent to a server or model. Text is read
from the arguments, or from stdin when none are given or the only argument
is "-".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return fmt.Errorf("read text: %w", err)
			}
			return runSimplify(text, cmd.OutOrStdout())
		},
	}
}

func runSimplify(raw string, out io.Writer) error {
	text := textkit.Normalize(raw, 0)
	if text == "" {
		return errors.New("nothing to simplify: text is empty")
	}

	simple := textkit.Simplify(text)
	fmt.Fprintln(out, "Simplified:")
	fmt.Fprintln(out, "  "+simple)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	for _, point := range textkit.ExtractiveSummary(simple) {
		fmt.Fprintln(out, "  - "+point)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Mind map:")
	for _, node := range textkit.MindMap(simple) {
		fmt.Fprintf(out, "  %s: %s\n", node.Topic, strings.Join(node.Children, ", "))
	}
	return nil
}
