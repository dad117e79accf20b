package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/ai"
	"github.com/arin/pagesum/internal/config"
	"github.com/arin/pagesum/internal/rag"
	"github.com/arin/pagesum/internal/think"
)

const doctorTimeout = 60 * time.Second

// errWarn marks a check result as a warning rather than a failure.
var errWarn = errors.New("warn")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and model connectivity",
	Long: `Run a health check on your pagesum setup. Verifies the configuration,
that the model server is reachable and has the configured models, and
that a short generation streams back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  pagesum doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) bool {
			detail, err := fn()
			switch {
			case errors.Is(err, errWarn):
				yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
				dim.Fprintf(os.Stderr, "    %s\n", strings.TrimSuffix(err.Error(), ": "+errWarn.Error()))
				warn++
			case err != nil:
				red.Fprintf(os.Stderr, "  ✗ %s\n", name)
				dim.Fprintf(os.Stderr, "    %s\n", err.Error())
				fail++
				return false
			default:
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, ": %s", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
			return true
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		defer cancel()

		cfg, err := config.Load()
		configOK := check("Configuration", func() (string, error) {
			if err != nil {
				return "", err
			}
			if err := cfg.Validate(); err != nil {
				return "", err
			}
			return fmt.Sprintf("%s, model %s", cfg.Provider, cfg.Model), nil
		})

		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", fmt.Errorf("%s not found, it will be created on first use: %w", dir, errWarn)
			}
			if !info.IsDir() {
				return "", fmt.Errorf("%s exists but is not a directory", dir)
			}
			return dir, nil
		})

		if configOK && cfg.Provider == config.ProviderOllama {
			provider := ai.NewOllamaProvider(cfg.Endpoint, cfg.GeneratePath, cfg.Model)
			var models []string
			reachable := check("Ollama server reachable", func() (string, error) {
				var err error
				models, err = provider.Models(ctx)
				if err != nil {
					return "", err
				}
				return cfg.Endpoint, nil
			})
			if reachable {
				check(fmt.Sprintf("Model available (%s)", cfg.Model), func() (string, error) {
					if hasModel(models, cfg.Model) {
						return "ready", nil
					}
					return "", fmt.Errorf("model not found, run: ollama pull %s", cfg.Model)
				})
			}
		}

		if configOK && cfg.Provider != config.ProviderMock {
			check(fmt.Sprintf("Embeddings (%s)", cfg.EmbedModel), func() (string, error) {
				vec, err := rag.NewEmbedClient(cfg.EmbedBaseURL(), cfg.EmbedModel).Embed(ctx, "health check")
				if err != nil {
					return "", fmt.Errorf("%v; questions will use the start of the page instead: %w", err, errWarn)
				}
				return fmt.Sprintf("%d dimensions", len(vec)), nil
			})
		}

		if configOK {
			check("Model streams a reply", func() (string, error) {
				provider, err := ai.NewProvider(cfg)
				if err != nil {
					return "", err
				}
				start := time.Now()
				text, err := ai.Collect(provider.Stream(ctx, "Reply with the single word OK."))
				if err != nil {
					return "", err
				}
				thinking, visible := think.Extract(text)
				detail := fmt.Sprintf("%q in %s", firstLine(visible), time.Since(start).Round(time.Millisecond))
				if thinking != "" {
					detail += ", with thinking"
				}
				return detail, nil
			})
		}

		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}

// hasModel matches model against Ollama tag names, treating a bare name as
// its ":latest" tag.
func hasModel(models []string, model string) bool {
	for _, m := range models {
		if m == model || m == model+":latest" || strings.TrimSuffix(m, ":latest") == model {
			return true
		}
	}
	return false
}
