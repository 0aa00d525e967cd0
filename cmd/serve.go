package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikogura/cv-generator/pkg/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

//nolint:gochecknoglobals // Cobra boilerplate
var listenAddr string

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the CV generator web service",
	Long: `Serve the CV form page and the generation and download endpoints.

Generated files live under the configured temp_dir, one directory per request,
and are deleted when the service shuts down.

Example:
  cv-generator serve
  cv-generator serve --listen 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// errSignalled stops the errgroup when the process is asked to exit.
var errSignalled = errors.New("shutdown requested") //nolint:gochecknoglobals // Sentinel

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config, :8000)")
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	logger := newLogger(os.Stderr)

	// maxprocs.Set only fails on an invalid GOMAXPROCS value, in which case
	// the runtime default stays in effect.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) {
		logger.Debug(fmt.Sprintf(format, a...))
	}))

	logFlags(logger, cmd.Flags())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}

	ctx := cmd.Context()

	svc, sessions, err := buildPipeline(ctx, cfg, cfg.TempDir, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Listen:          cfg.Server.Listen,
		StaticDir:       cfg.Server.StaticDir,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Generator:       svc,
		Sessions:        sessions,
		Logger:          logger,
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (sigErr error) {
		select {
		case sig := <-signals:
			logger.Info("received signal", "signal", sig.String())
			sigErr = errSignalled
		case <-gctx.Done():
		}
		return sigErr
	})

	g.Go(func() (runErr error) {
		runErr = srv.Run(gctx)
		return runErr
	})

	err = g.Wait()
	if errors.Is(err, errSignalled) {
		err = nil
	}

	return err
}
