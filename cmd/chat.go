package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/config"
	"github.com/arin/pagesum/internal/session"
	"github.com/arin/pagesum/internal/think"
	"github.com/arin/pagesum/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat <url>",
	Short: "Summarize a page, then ask questions about it",
	Long: `Open a web page, stream its summary and start a conversation about
it. Answers draw on the parts of the page most relevant to each question,
and the last few messages carry over between questions.

Type '/reset' to clear the conversation, 'exit' or 'quit' to end it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		opts := ui.RenderOptions{Prefix: "  ", ShowThinking: cfg.ShowThinking}
		summarize := func(onUpdate func(think.State)) (think.State, error) {
			return manager.Summarize(cmd.Context(), page.ID, onUpdate)
		}
		if _, err := streamWithSpinner("Summarizing...", opts, summarize); err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)

		dim.Fprintf(os.Stderr, "  Ask about the page. '/reset' clears the chat, 'exit' quits.\n\n")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			green.Fprint(os.Stderr, "  you → ")
			if !scanner.Scan() {
				break
			}

			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "exit", "quit", "bye":
				dim.Fprintf(os.Stderr, "\n  Later!\n\n")
				return nil
			case "/reset":
				if err := manager.ResetChat(page.ID); err != nil {
					fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
				} else {
					dim.Fprintf(os.Stderr, "  Conversation cleared.\n\n")
				}
				continue
			}

			cyan.Fprintf(os.Stderr, "  pagesum →\n")
			_, err := streamWithSpinner("Thinking...", opts, func(onUpdate func(think.State)) (think.State, error) {
				return manager.Ask(cmd.Context(), page.ID, input, onUpdate)
			})
			if err != nil && !errors.Is(err, session.ErrStreamFailed) {
				fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
			}
		}
		return scanner.Err()
	},
}
