// Command osmnode serves OpenStreetMap node lookups over MCP and answers
// one-shot lookups from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmnode/pkg/monitoring"
	"github.com/NERVsystems/osmnode/pkg/osm"
	"github.com/NERVsystems/osmnode/pkg/registration"
	"github.com/NERVsystems/osmnode/pkg/server"
	"github.com/NERVsystems/osmnode/pkg/tracing"
	ver "github.com/NERVsystems/osmnode/pkg/version"
)

const (
	healthCheckInterval = 30 * time.Second
	shutdownTimeout     = 30 * time.Second
)

func main() {
	envErr := godotenv.Load(".env", ".env.local")

	cfg, err := parseConfig(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Debug("no dotenv files loaded", "error", envErr)
	}

	if cfg.showVersion {
		fmt.Println(ver.String())
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("osmnode failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config, logger *slog.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if serr := shutdownTracing(context.Background()); serr != nil {
				err = multierr.Append(err, fmt.Errorf("shutting down tracing: %w", serr))
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	osm.SetUserAgent(cfg.userAgent)
	client := osm.NewAPIClient(cfg.clientOptions())
	client.SetLogger(logger.With("component", "osm_api"))

	svc := osm.NewService(client)
	svc.SetLogger(logger.With("component", "osm_node"))

	if cfg.enableMonitoring {
		osm.SetMonitoringHooks(monitoring.OSMHooks())
	}

	if cfg.oneShot() {
		return runOneShot(ctx, cfg, svc, os.Stdin, os.Stdout)
	}

	logger.Info("starting osmnode MCP server",
		"version", ver.BuildVersion,
		"log_level", logLevel(cfg).String(),
		"user_agent", cfg.userAgent,
		"api_url", client.BaseURL(),
		"rps", cfg.rps,
		"burst", cfg.burst,
		"http_enabled", cfg.enableHTTP,
		"monitoring_enabled", cfg.enableMonitoring,
		"monitoring_addr", cfg.monitoringAddr)

	return serve(ctx, cfg, client, svc, logger)
}

func logLevel(cfg *config) slog.Level {
	if cfg.debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// serve runs every long-lived component until a signal arrives, stdin
// closes in stdio-only mode, or one of them fails.
func serve(ctx context.Context, cfg *config, client *osm.APIClient, svc *osm.Service, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var healthChecker *monitoring.HealthChecker
	if cfg.enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()

		monitor := monitoring.NewConnectionMonitor(tracing.ServiceOSMAPI, healthChecker, client.CheckHealth, healthCheckInterval)
		g.Go(func() error { return monitor.Run(ctx) })

		mux := http.NewServeMux()
		server.MountMonitoring(mux, healthChecker)
		monitoringServer := &http.Server{
			Addr:              cfg.monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting monitoring server", "addr", cfg.monitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("monitoring server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return shutdownWithTimeout(monitoringServer.Shutdown)
		})
	}

	s := server.NewServer(svc, logger)

	if cfg.enableHTTP {
		transport := server.NewHTTPTransport(s.GetMCPServer(), server.HTTPTransportConfig{
			Addr:      cfg.httpAddr,
			BaseURL:   cfg.httpBaseURL,
			AuthToken: cfg.httpToken,
		}, healthChecker, logger)

		g.Go(func() error {
			if err := transport.Start(); err != nil {
				return fmt.Errorf("http transport: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return shutdownWithTimeout(transport.Shutdown)
		})
	}

	if !cfg.httpOnly {
		g.Go(func() error {
			logger.Info("transport_enabled", "type", "stdio")
			err := s.RunWithContext(ctx)
			if !cfg.enableHTTP {
				// the client hung up, nothing else to serve
				cancel()
			}
			return err
		})
	}

	if cfg.registryURL != "" {
		regClient := registration.NewClient(registration.Config{
			RegistryURL:  cfg.registryURL,
			ServiceName:  server.ServerName,
			ServiceURL:   cfg.advertisedURL(),
			Version:      ver.BuildVersion,
			Capabilities: []string{"osm_node_lookup"},
			Tools:        s.ToolNames(),
			Metadata: map[string]interface{}{
				"transport": map[string]bool{"stdio": !cfg.httpOnly, "http": cfg.enableHTTP},
			},
		}, logger.With("component", "registration"))
		g.Go(func() error { return regClient.Run(ctx) })
	}

	logger.Info("server_ready", "tools", s.ToolNames())
	err := g.Wait()
	logger.Info("server stopped")
	return err
}

func shutdownWithTimeout(shutdown func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return shutdown(ctx)
}
