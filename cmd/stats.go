package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show streaming statistics",
	Long: `Display a dashboard of model streams: how many ran, how often they
finished, time to the first token, total duration, and how much of the
output was thinking rather than answer.

Data is collected automatically and stored locally in ~/.pagesum/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  pagesum stats\n\n")

		if summary.TotalStreams == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Summarize a few pages and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		green.Fprintf(os.Stderr, "  Streams:     ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalStreams)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Completed:   ")
		if summary.SuccessRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		}

		green.Fprintf(os.Stderr, "  First token: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstChunkMs)
		green.Fprintf(os.Stderr, "  Duration:    ")
		fmt.Fprintf(os.Stderr, "%dms avg, %.0f chunks\n", summary.AvgDurationMs, summary.AvgChunks)
		green.Fprintf(os.Stderr, "  Thinking:    ")
		fmt.Fprintf(os.Stderr, "%.0f%% of output\n", summary.ThinkingShare)

		if len(summary.KindBreakdown) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Kinds")
			kinds := make([]string, 0, len(summary.KindBreakdown))
			for k := range summary.KindBreakdown {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				count := summary.KindBreakdown[kind]
				pct := float64(count) / float64(summary.TotalStreams) * 100
				bar := strings.Repeat("█", int(pct/5))
				dim.Fprintf(os.Stderr, "  %-10s ", kind)
				fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, count, pct)
			}
		}

		if len(summary.TopURLs) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Pages")
			for i, tu := range summary.TopURLs {
				u := tu.URL
				if len(u) > 60 {
					u = u[:60] + "..."
				}
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", u)
				dim.Fprintf(os.Stderr, "(%dx)\n", tu.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}
