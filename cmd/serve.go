package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/pagesum/internal/config"
	"github.com/arin/pagesum/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface",
	Long: `Serve the pagesum web page and its JSON/SSE API. Open the printed
address in a browser, paste a URL, and read the summary as it streams.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		addr := cfg.Listen
		if listenAddr != "" {
			addr = listenAddr
		}

		manager, _, err := newManager(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		cyan.Fprintf(os.Stderr, "\n  pagesum is running at http://%s\n", addr)
		dim.Fprintf(os.Stderr, "  provider %s, model %s. Press Ctrl+C to stop.\n\n", cfg.Provider, cfg.Model)

		return server.New(manager).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (default from config, 127.0.0.1:8501)")
}
