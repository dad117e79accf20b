package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pagesum configuration",
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in ~/.pagesum/config.yaml.",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", args[0], err)
		}
		fmt.Printf("%s set to %s.\n", args[0], args[1])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dim := color.New(color.FgHiBlack)

		row := func(name, value string) {
			fmt.Printf("%-18s %s\n", name+":", value)
		}
		row("Provider", cfg.Provider)
		row("Model", cfg.Model)
		switch cfg.Provider {
		case config.ProviderOllama:
			row("Endpoint", cfg.Endpoint+cfg.GeneratePath)
		case config.ProviderOpenAI:
			row("Base URL", orDefault(cfg.OpenAIBaseURL, "https://api.openai.com/v1"))
			row("API key", maskKey(cfg.OpenAIAPIKey))
		}
		row("Embeddings", cfg.EmbedModel+" at "+cfg.EmbedBaseURL())
		row("Language", cfg.Language)
		row("Max content chars", fmt.Sprint(cfg.MaxContentChars))
		row("Show thinking", fmt.Sprint(cfg.ShowThinking))
		row("Listen", cfg.Listen)
		row("Log level", cfg.LogLevel)
		if cfg.LogFile != "" {
			row("Log file", cfg.LogFile)
		}
		row("Config file", config.Path())

		if err := cfg.Validate(); err != nil {
			fmt.Println()
			color.New(color.FgYellow).Fprintf(os.Stderr, "  ⚠ %v\n", err)
		} else {
			dim.Printf("\nSettable keys: pagesum config set <key> <value>\n")
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(setCmd)
	configCmd.AddCommand(showCmd)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// maskKey shows only the ends of an API key.
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
