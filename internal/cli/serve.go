package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/istore/internal/entity"
	"github.com/roach88/istore/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve [url...]",
		Short: "Serve the store over a read-only HTTP API",
		Long: `Preload the entities addressed by the given URLs and serve the store
over HTTP until interrupted.

Routes: /healthz, /instances, /instances/{id} and /metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default http.listen from config)")

	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions, opts *ServeOptions, urls []string) error {
	out := rootOpts.formatter(cmd)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := entity.NewMetrics(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	store, err := rootOpts.newStore(entity.WithMetrics(metrics))
	if err != nil {
		return err
	}
	cfg := rootOpts.Config()
	logger := rootOpts.Logger()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	for _, url := range urls {
		if _, err := store.Load(ctx, url); err != nil {
			return out.Fail(ExitFailure, "cannot preload entity", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	listen := opts.Listen
	if listen == "" {
		listen = cfg.HTTP.Listen
	}
	srv := httpapi.New(store, httpapi.WithLogger(logger), httpapi.WithGatherer(reg))

	fmt.Fprintf(out.GetErrWriter(), "Serving %d entities on http://%s\n", store.Len(), listen)
	if err := srv.ListenAndServe(ctx, listen, cfg.HTTP.ReadTimeout); err != nil {
		return WrapExitError(ExitFailure, "http server error", err)
	}

	logger.Info("http api stopped")
	return nil
}
