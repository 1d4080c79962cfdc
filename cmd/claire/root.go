package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "claire",
		Short: "Claire - an accessible reading assistant",
		Long: `Claire helps readers with dyslexia and other reading difficulties.

The server exposes simplification, summaries, quizzes, mind maps,
read-aloud speech, dictation and a supportive companion chat over HTTP
and MCP. The helper commands talk to a running server or work offline.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSayCmd(), newSimplifyCmd())
	return root
}

// readText returns the joined args, or stdin when args are empty or "-".
func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// newCLILogger logs warnings and errors only, so helper output stays clean.
func newCLILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
