package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ppiankov/claimlens/internal/observability"
	"github.com/ppiankov/claimlens/internal/pipeline"
	"github.com/ppiankov/claimlens/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes the engines over HTTP:

  GET  /health
  GET  /metrics
  POST /v1/claims/analyze
  POST /v1/claims/batch
  POST /v1/documents/validate   (multipart: file, document_type, text)
  POST /v1/images/analyze       (multipart: file, analysis_type)
  GET  /v1/analyses[/:id]
  GET  /v1/stats

API clients are configured under auth.clients; with none configured the API
is open.

Example:
  claimlens serve --addr :8001 --history`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	serveCmd.Flags().BoolVar(&withHistory, "history", false, "record analyses in the history database")
	serveCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the report cache")
	serveCmd.Flags().BoolVar(&llmEnabled, "llm", false, "attach an LLM reviewer advisory")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	p, err := pipeline.NewPipeline(cfg, pipeline.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	slog.Info("starting claimlens", "version", Version, "cache", cfg.Cache.Enabled, "history", cfg.Store.Enabled, "advisor", p.AdvisorName())

	srv := server.New(cfg, server.Deps{
		Analyzer: p,
		Store:    p.Store(),
		Metrics:  metrics,
		Version:  Version,
	})
	return srv.Run(ctx)
}
