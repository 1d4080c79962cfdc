package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/claire/internal/api"
	"github.com/MrWong99/claire/internal/speech"
	"github.com/MrWong99/claire/internal/usage"
	"github.com/MrWong99/claire/pkg/audio/exec"
	"github.com/MrWong99/claire/pkg/provider/tts/remote"
)

// sayOptions are the flags of the say command.
type sayOptions struct {
	endpoint string
	voice    string
	lang     string
	player   string
	maxChunk int
	usageDB  string
	user     string
	timeout  time.Duration
}

func newSayCmd() *cobra.Command {
	opts := sayOptions{
		endpoint: "http://localhost:8080/api/tts",
		player:   strings.Join(exec.DefaultCommand, " "),
		maxChunk: speech.DefaultMaxChunkChars,
		usageDB:  defaultUsageDB(),
		timeout:  20 * time.Second,
	}
	cmd := &cobra.Command{
		Use:   "say [text|-]",
		Short: "Read text aloud through a Claire server",
		Long: `Split the text into sentence chunks, synthesise each chunk through the
server's /api/tts endpoint and play it with an external player. Text is
read from the arguments, or from stdin when none are given or the only
argument is "-". Press Ctrl+C to stop playback.

Without --user every read-aloud counts against the free limit stored in
--usage-db.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(newCLILogger())
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return fmt.Errorf("read text: %w", err)
			}

			ctrl, err := opts.controller()
			if err != nil {
				return err
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt)
			defer signal.Stop(sigs)
			go func() {
				for range sigs {
					ctrl.Cancel()
				}
			}()

			return runSay(cmd.Context(), ctrl, opts, text, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.endpoint, "endpoint", opts.endpoint, "speech synthesis endpoint of a Claire server")
	f.StringVar(&opts.voice, "voice", "", "speaker name (server default when empty)")
	f.StringVar(&opts.lang, "lang", "", "BCP-47 language tag, e.g. en-IN (server default when empty)")
	f.StringVar(&opts.player, "player", opts.player, "audio player command; \"-\" stands for stdin")
	f.IntVar(&opts.maxChunk, "max-chunk", opts.maxChunk, "maximum characters per spoken chunk")
	f.StringVar(&opts.usageDB, "usage-db", opts.usageDB, "SQLite file holding the free usage counter")
	f.StringVar(&opts.user, "user", "", "signed-in user ID; bypasses the free usage limit")
	f.DurationVar(&opts.timeout, "chunk-timeout", opts.timeout, "timeout for synthesising one chunk")
	return cmd
}

// controller builds the speech controller for opts.
func (o sayOptions) controller() (*speech.Controller, error) {
	var ropts []remote.Option
	if o.user != "" {
		ropts = append(ropts, remote.WithHeader(api.HeaderUserID, o.user))
	}
	synth, err := remote.New(o.endpoint, ropts...)
	if err != nil {
		return nil, err
	}
	player := exec.New(strings.Fields(o.player)...)
	ctrl := speech.NewController(synth, player,
		speech.WithMaxChunkChars(o.maxChunk),
		speech.WithDefaultVoice(o.voice),
		speech.WithDefaultLanguage(o.lang),
		speech.WithChunkTimeout(o.timeout),
	)
	return ctrl, nil
}

// runSay charges the local usage gate for anonymous users and speaks text.
func runSay(ctx context.Context, ctrl *speech.Controller, opts sayOptions, text string, out io.Writer) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to read: text is empty")
	}

	if opts.user == "" {
		store, err := usage.OpenSQLite(ctx, opts.usageDB)
		if err != nil {
			return fmt.Errorf("open usage store: %w", err)
		}
		defer store.Close()

		if err := chargeLocal(ctx, usage.NewGate(store), out); err != nil {
			return err
		}
	}

	res := ctrl.Speak(ctx, text, speech.SpeakOptions{Voice: opts.voice, LanguageTag: opts.lang})
	switch res.Outcome {
	case speech.OutcomeCompleted:
		fmt.Fprintf(out, "Done: played %d of %d chunks.\n", res.Played, res.Chunks)
	case speech.OutcomeCancelled:
		fmt.Fprintf(out, "Stopped after %d of %d chunks.\n", res.Played, res.Chunks)
	case speech.OutcomeStopped:
		return fmt.Errorf("speech stopped after %d of %d chunks: %w", res.Played, res.Chunks, res.Err)
	}
	return nil
}

// chargeLocal spends one local read-aloud. A counter that cannot be read
// counts as unused, so only a reached limit stops the command.
func chargeLocal(ctx context.Context, gate *usage.Gate, out io.Writer) error {
	d, err := gate.Check(ctx, usage.Identity{Subject: usage.LocalSubject}, usage.FeatureTTS)
	if err != nil {
		slog.Warn("say: usage gate degraded", "err", err)
	}
	if !d.Allowed {
		return fmt.Errorf("free read-aloud limit reached (%d of %d used), sign in with --user to continue", d.Count, d.Limit)
	}
	fmt.Fprintf(out, "Free read-alouds left: %d\n", d.Remaining)
	return nil
}

// defaultUsageDB keeps the counter in the user's config directory, or the
// working directory when that is unknown.
func defaultUsageDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "claire-usage.db"
	}
	return filepath.Join(dir, "claire", "usage.db")
}
