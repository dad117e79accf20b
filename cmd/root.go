package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/config"
)

var (
	logLevel string
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "pagesum",
	Short: "Summarize web pages and chat about them with a local model",
	Long: `pagesum fetches a web page, summarizes it with a language model and
lets you ask follow-up questions about it. Models that reason inside
<think> tags have their thinking shown separately from the answer.

Examples:
  pagesum summarize https://go.dev/blog/go1.22
  pagesum summarize --no-thinking https://example.com/article
  pagesum chat https://example.com/article
  pagesum serve --listen 127.0.0.1:8501`,
	SilenceUsage:               true,
	SilenceErrors:              true,
	SuggestionsMinimumDistance: 1,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		return setupLogging(cfg, logLevel, cmd.Name() == serveCmd.Name())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pagesum version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pagesum", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}
