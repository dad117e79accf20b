package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/config"
	"github.com/arin/pagesum/internal/scrape"
	"github.com/arin/pagesum/internal/session"
	"github.com/arin/pagesum/internal/think"
	"github.com/arin/pagesum/internal/ui"
)

var (
	noThinking   bool
	thinkingOnly bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <url>",
	Short: "Summarize a web page",
	Long: `Fetch a web page, extract its readable text and stream a summary.
The model's reasoning is shown dimmed above the summary unless
--no-thinking is given or show_thinking is false in the config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if noThinking && thinkingOnly {
			return errors.New("--no-thinking and --thinking-only cannot be used together")
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		manager, indexer, err := newManager(cfg)
		if err != nil {
			return err
		}
		page, err := openPage(cmd.Context(), manager, indexer, args[0])
		if err != nil {
			return err
		}

		_, err = streamWithSpinner("Summarizing...", ui.RenderOptions{
			Prefix:       "  ",
			ShowThinking: cfg.ShowThinking && !noThinking,
			ThinkingOnly: thinkingOnly,
		}, func(onUpdate func(think.State)) (think.State, error) {
			var opts []session.RunOption
			if thinkingOnly {
				opts = append(opts, session.StopWhen(func(s think.State) bool { return s.Complete }))
			}
			return manager.Summarize(cmd.Context(), page.ID, onUpdate, opts...)
		})
		return err
	},
}

func init() {
	summarizeCmd.Flags().BoolVar(&noThinking, "no-thinking", false, "Hide the model's reasoning")
	summarizeCmd.Flags().BoolVar(&thinkingOnly, "thinking-only", false, "Print only the model's reasoning")
}

// openPage fetches and indexes url behind a spinner.
func openPage(ctx context.Context, m *session.Manager, indexer *reportingIndexer, url string) (*session.Page, error) {
	sp := ui.NewSpinner("Fetching page...")
	sp.Start()
	if indexer != nil {
		indexer.progress = sp.Progress("Indexing page")
	}

	page, err := m.Open(ctx, url)
	if err != nil {
		switch {
		case errors.Is(err, scrape.ErrInvalidURL):
			sp.Fail("That URL can't be fetched")
		case errors.Is(err, session.ErrNoContent):
			sp.Fail("No readable text on that page")
		default:
			sp.Fail("Could not fetch the page")
		}
		return nil, err
	}

	snap := page.Snapshot()
	title := snap.Title
	if title == "" {
		title = snap.URL
	}
	sp.Success(fmt.Sprintf("%s (%d characters)", title, snap.Chars))
	return page, nil
}

// streamWithSpinner spins until the first token, then renders the stream.
// A failed stream keeps what was printed and reports the error below it.
func streamWithSpinner(msg string, opts ui.RenderOptions, run func(func(think.State)) (think.State, error)) (think.State, error) {
	sp := ui.NewSpinner(msg)
	sp.Start()
	spinning := true

	r := ui.NewRenderer(os.Stdout, opts)
	state, err := run(func(s think.State) {
		if spinning {
			sp.Stop()
			spinning = false
		}
		r.Update(s)
	})
	if spinning {
		sp.Stop()
	}
	r.Finish(state)

	if err != nil {
		red := color.New(color.FgRed)
		if errors.Is(err, session.ErrStreamFailed) {
			red.Fprintf(os.Stderr, "  ✗ The model stream broke off. Partial output is shown above.\n")
		}
		return state, err
	}
	return state, nil
}
