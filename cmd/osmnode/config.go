package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NERVsystems/osmnode/pkg/osm"
)

// Environment variables that seed the flag defaults
const (
	envAPIURL    = "OSMNODE_API_URL"
	envUserAgent = "OSMNODE_USER_AGENT"
	envRPS       = "OSMNODE_RPS"
	envBurst     = "OSMNODE_BURST"
	envAuthToken = "OSMNODE_HTTP_AUTH_TOKEN"
	envRegistry  = "OSMNODE_REGISTRY_URL"
)

// noNode marks -node as unset; real node ids are never negative
const noNode int64 = -1

type config struct {
	showVersion bool
	debug       bool
	userAgent   string
	apiURL      string
	rps         float64
	burst       int

	// one-shot modes
	nodeID    int64
	parseFile string

	// HTTP transport
	enableHTTP  bool
	httpOnly    bool
	httpAddr    string
	httpBaseURL string
	httpToken   string

	enableMonitoring bool
	monitoringAddr   string

	registryURL string
	serviceURL  string
}

// advertisedURL is the URL announced to the registry
func (c *config) advertisedURL() string {
	if c.serviceURL != "" || !c.enableHTTP {
		return c.serviceURL
	}
	if strings.HasPrefix(c.httpAddr, ":") {
		return "http://localhost" + c.httpAddr
	}
	return "http://" + c.httpAddr
}

// oneShot reports whether the process should answer a single lookup and exit
func (c *config) oneShot() bool {
	return c.nodeID != noNode || c.parseFile != ""
}

func (c *config) clientOptions() osm.ClientOptions {
	opts := osm.DefaultClientOptions()
	opts.BaseURL = c.apiURL
	opts.RequestsPerSecond = c.rps
	opts.Burst = c.burst
	return opts
}

// parseConfig reads flags from args on top of environment-derived defaults
func parseConfig(args []string, getenv func(string) string, output io.Writer) (*config, error) {
	defaults := osm.DefaultClientOptions()

	rps := defaults.RequestsPerSecond
	if v := getenv(envRPS); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envRPS, v, err)
		}
		rps = parsed
	}

	burst := defaults.Burst
	if v := getenv(envBurst); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", envBurst, v, err)
		}
		burst = parsed
	}

	cfg := &config{}
	fs := flag.NewFlagSet("osmnode", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVar(&cfg.showVersion, "version", false, "Display version information")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&cfg.userAgent, "user-agent", withDefault(getenv(envUserAgent), osm.DefaultUserAgent), "User-Agent string for OSM API requests")
	fs.StringVar(&cfg.apiURL, "api-url", withDefault(getenv(envAPIURL), osm.DefaultBaseURL), "Base URL of the OSM API host")
	fs.Float64Var(&cfg.rps, "rps", rps, "OSM API rate limit in requests per second (0 disables throttling)")
	fs.IntVar(&cfg.burst, "burst", burst, "OSM API rate limit burst size")

	fs.Int64Var(&cfg.nodeID, "node", noNode, "Fetch a single node by id, print it as JSON and exit")
	fs.StringVar(&cfg.parseFile, "parse", "", "Parse an OSM XML file ('-' for stdin), print the node as JSON and exit")

	fs.BoolVar(&cfg.enableHTTP, "enable-http", false, "Enable HTTP+SSE transport (in addition to stdio)")
	fs.BoolVar(&cfg.httpOnly, "http-only", false, "Run HTTP transport only, skip stdio (requires --enable-http)")
	fs.StringVar(&cfg.httpAddr, "http-addr", ":7082", "HTTP server address")
	fs.StringVar(&cfg.httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")
	fs.StringVar(&cfg.httpToken, "http-auth-token", getenv(envAuthToken), "Bearer token required on the HTTP MCP endpoints (empty disables auth)")

	fs.BoolVar(&cfg.enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics and health endpoints")
	fs.StringVar(&cfg.monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	fs.StringVar(&cfg.registryURL, "registry-url", getenv(envRegistry), "Service registry URL; registration is disabled when empty")
	fs.StringVar(&cfg.serviceURL, "service-url", "", "External URL announced to the registry (defaults to the HTTP transport address)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.nodeID < noNode {
		return nil, errors.New("-node must be a non-negative id")
	}
	if cfg.nodeID != noNode && cfg.parseFile != "" {
		return nil, errors.New("-node and -parse are mutually exclusive")
	}
	if cfg.httpOnly && !cfg.enableHTTP {
		return nil, errors.New("-http-only requires -enable-http")
	}
	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
