package commands

import (
	"fmt"
	"net"

	"github.com/penwyp/go-ha-timeline/internal/server"
	"github.com/penwyp/go-ha-timeline/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveListen   string
	serveNoReload bool

	// onListening is told the bound address; tests use it with port 0.
	onListening func(addr net.Addr)
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the timeline over HTTP",
	Long: `Keeps the timeline current and serves it as JSON.

Endpoints:
  GET  /api/timeline          current items and status
  POST /api/timeline/refresh  request a refresh
  GET  /healthz, /readyz      probes
  GET  /metrics               Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "",
		"Listen address (overrides server.listen)")
	serveCmd.Flags().BoolVar(&serveNoReload, "no-reload", false,
		"Do not reload the card when the configuration file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer util.CloseLogger()
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if err := a.timeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Listen, err)
	}
	if onListening != nil {
		onListening(listener.Addr())
	}

	srv := server.New(a.timeline, a.metrics.Handler(), util.GetTimeProvider().Clock())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, listener)
	})

	if !serveNoReload {
		cards, stopWatching, err := watchCards(gctx, expandPath(configPath))
		if err != nil {
			util.LogWarnf("Config reload disabled: %v", err)
		} else {
			defer stopWatching()
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case card := <-cards:
						if err := a.timeline.SetConfiguration(card); err != nil {
							util.LogWarnf("Configuration rejected: %v", err)
							continue
						}
						util.LogInfo("Configuration reloaded")
					}
				}
			})
		}
	}

	err = g.Wait()
	util.LogInfo("Server stopped")
	return err
}
