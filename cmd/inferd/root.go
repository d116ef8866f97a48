package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/queue"
	"inferd/internal/registry"
	"inferd/pkg/types"
)

const defaultSweepSeconds = 10

// envOr returns the value of the environment variable key, or fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma separated list, trimming whitespace and
// dropping empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Asynchronous inference request router",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath   string
		addr         string
		specsDir     string
		sweepSeconds int
		pendingDepth int
		maxBodyBytes int64
		logLevel     string
		corsOrigins  string
	)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{
				Addr:         addr,
				SpecsDir:     specsDir,
				SweepSeconds: sweepSeconds,
				PendingDepth: pendingDepth,
				MaxBodyBytes: maxBodyBytes,
				LogLevel:     logLevel,
				CORSOrigins:  corsOrigins,
			}
			if configPath != "" {
				fileCfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = mergeConfig(fileCfg, cmd, cfg)
			}
			return runServe(cfg)
		},
	}

	f := serve.Flags()
	f.StringVar(&configPath, "config", envOr("INFERD_CONFIG", ""), "Path to a config file (.yaml/.json/.toml)")
	f.StringVar(&addr, "addr", envOr("INFERD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	f.StringVar(&specsDir, "specs-dir", envOr("INFERD_SPECS_DIR", ""), "Directory of model spec files; empty disables the registry")
	f.IntVar(&sweepSeconds, "sweep-interval", defaultSweepSeconds, "Seconds between idle queue sweeps (0 disables)")
	f.IntVar(&pendingDepth, "pending-depth", 0, "Per-queue pending buffer size (0 uses the default)")
	f.Int64Var(&maxBodyBytes, "max-body-bytes", 0, "Request body size limit in bytes (0 uses the default)")
	f.StringVar(&logLevel, "log-level", envOr("INFERD_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	f.StringVar(&corsOrigins, "cors-origins", envOr("INFERD_CORS_ORIGINS", ""), "Comma separated allowed CORS origins; empty disables CORS")
	return serve
}

// mergeConfig layers the file config under flag values: a flag the user
// set explicitly wins over the file, everything else comes from the file
// when the file sets it.
func mergeConfig(file config.Config, cmd *cobra.Command, flags config.Config) config.Config {
	out := flags
	if !cmd.Flags().Changed("addr") && file.Addr != "" {
		out.Addr = file.Addr
	}
	if !cmd.Flags().Changed("specs-dir") && file.SpecsDir != "" {
		out.SpecsDir = file.SpecsDir
	}
	if !cmd.Flags().Changed("sweep-interval") && file.SweepSeconds != 0 {
		out.SweepSeconds = file.SweepSeconds
	}
	if !cmd.Flags().Changed("pending-depth") && file.PendingDepth != 0 {
		out.PendingDepth = file.PendingDepth
	}
	if !cmd.Flags().Changed("max-body-bytes") && file.MaxBodyBytes != 0 {
		out.MaxBodyBytes = file.MaxBodyBytes
	}
	if !cmd.Flags().Changed("log-level") && file.LogLevel != "" {
		out.LogLevel = file.LogLevel
	}
	if !cmd.Flags().Changed("cors-origins") && file.CORSOrigins != "" {
		out.CORSOrigins = file.CORSOrigins
	}
	return out
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func runServe(cfg config.Config) error {
	log := newLogger(cfg.LogLevel)

	var lookup httpapi.SpecsLookup
	if cfg.SpecsDir != "" {
		specs, err := registry.LoadDir(cfg.SpecsDir)
		if err != nil {
			return err
		}
		byID := make(map[string]types.ModelSpecs, len(specs))
		for _, s := range specs {
			byID[s.ID] = s
		}
		lookup = func(id string) (types.ModelSpecs, bool) {
			s, ok := byID[id]
			return s, ok
		}
		log.Info().Int("models", len(specs)).Str("dir", cfg.SpecsDir).Msg("loaded model specs")
	}

	events := httpapi.NewEventStream()
	mgr := queue.NewWithConfig(queue.ManagerConfig{
		Sink:         events,
		PendingDepth: cfg.PendingDepth,
		Logger:       log,
	})

	httpapi.SetLogger(log)
	if cfg.MaxBodyBytes > 0 {
		httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	}
	if origins := splitCSV(cfg.CORSOrigins); len(origins) > 0 {
		httpapi.SetCORSOptions(true, origins,
			[]string{"GET", "POST", "OPTIONS"},
			[]string{"Accept", "Content-Type", "X-Log-Level"})
	}

	// Streaming handlers observe this context so open SSE connections
	// end during shutdown.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	mux := httpapi.NewMux(mgr, events, lookup)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	sweepDone := make(chan struct{})
	if cfg.SweepSeconds > 0 {
		ticker := time.NewTicker(time.Duration(cfg.SweepSeconds) * time.Second)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if n := mgr.Sweep(); n > 0 {
						log.Debug().Int("removed", n).Msg("swept idle queues")
					}
				case <-sweepDone:
					return
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		close(sweepDone)
		return err
	}

	close(sweepDone)
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	mgr.Close()
	return nil
}
