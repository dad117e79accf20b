package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently summarized pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)
		red := color.New(color.FgRed)
		green := color.New(color.FgGreen)

		for i, e := range entries {
			dim.Printf("[%s] ", e.Timestamp.Format("2006-01-02 15:04:05"))
			if e.Title != "" {
				fmt.Printf("%s ", e.Title)
			}
			cyan.Printf("%s ", e.URL)
			if e.Success {
				green.Println("✓")
			} else {
				red.Println("✗")
			}
			if e.Error != "" {
				red.Printf("  %s\n", e.Error)
			} else if first := firstLine(e.Summary); first != "" {
				dim.Printf("  %s\n", first)
			}
			if i < len(entries)-1 {
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of history entries to show")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 100 {
		return string(r[:100]) + "..."
	}
	return line
}
