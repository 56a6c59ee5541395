// Command mcpgate runs the MCP gateway: a JSON-RPC-over-HTTP server that
// exposes registered tools to AI-agent clients, with operator-interruptible
// tool calls.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/pflag"

	"github.com/ideworks/mcpgate/mcp"
	"github.com/ideworks/mcpgate/server"
	"github.com/ideworks/mcpgate/session"
	"github.com/ideworks/mcpgate/tools"
)

const version = "0.3.0"

type appConfig struct {
	Port          int    `env:"MCPGATE_PORT,default=8765"`
	ServerName    string `env:"MCPGATE_SERVER_NAME,default=mcpgate"`
	ServerAuthor  string `env:"MCPGATE_SERVER_AUTHOR,default=ideworks"`
	HostVersion   string `env:"MCPGATE_HOST_VERSION,default=unknown"`
	LogLevel      string `env:"MCPGATE_LOG_LEVEL,default=info"`
	LogJSON       bool   `env:"MCPGATE_LOG_JSON,default=false"`
	PlainTextMode bool   `env:"MCPGATE_PLAIN_TEXT_MODE,default=false"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mcpgate:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return fmt.Errorf("failed to decode environment: %w", err)
	}

	// Flags override the environment.
	pflag.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pflag.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "emit JSON logs")
	pflag.BoolVar(&cfg.PlainTextMode, "plain-text", cfg.PlainTextMode, "return markdown results as plain text")
	pflag.Parse()

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry()
	registerBuiltins(registry, cfg)

	state := session.NewState()
	handler := server.NewHandler(registry, state,
		mcp.ImplementationInfo{Name: cfg.ServerName, Version: version, Author: cfg.ServerAuthor},
		server.WithLogger(log),
		server.WithHostVersion(cfg.HostVersion),
		server.WithPlainTextMode(cfg.PlainTextMode),
	)

	srv := server.NewServer(handler)
	if err := srv.Start(cfg.Port); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	return srv.Stop()
}

func newLogger(cfg appConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// registerBuiltins adds the tools that need no host product to answer.
// Host-specific tools are registered by the embedding integration.
func registerBuiltins(registry *tools.Registry, cfg appConfig) {
	registry.Register(tools.NewFunc(
		"get_server_version",
		"Returns the gateway server version, host product version, and runtime information.",
		func(map[string]string) (string, error) {
			return fmt.Sprintf("mcpgate %s\nhost: %s\ngo: %s %s/%s",
				version, cfg.HostVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH), nil
		},
	))
}
