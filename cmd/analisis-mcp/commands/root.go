package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"analisis-mcp/internal/config"
	"analisis-mcp/internal/logging"
	"analisis-mcp/internal/mcp"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose     bool
	metricsAddr string
	cfg         *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "analisis-mcp",
	Short: "analisis-mcp is a project health analytics MCP server",
	Long: `An MCP server that scores project health (schedule, resources, earned value),
generates prioritised narrative cases from a rule catalog and renders the resulting informe.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("analisis-mcp starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr, app.recorder.Handler())
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
			}()
		}

		server := mcp.NewServer(mcp.Deps{
			Analyzer:    app.pipeline,
			Progress:    app.tracker,
			Reports:     app.reports,
			DefaultMode: cfg.NarrativeMode,
			Version:     Version,
		})
		return server.Serve(ctx)
	},
}

// serveMetrics exposes /metrics in the background.
func serveMetrics(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	return srv
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(analyzeCmd, progressCmd, reportCmd, migrateCmd)
}
