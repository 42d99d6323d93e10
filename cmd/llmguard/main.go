// Command llmguard serves the protected chat-completion gateway as a
// JSON-RPC server over stdio, one request per line.
//
// Usage:
//
//	llmguard -config llmguard.yaml
//	llmguard -version
//
// When server.http_addr is set, health probes (/healthz, /readyz, /health,
// /health/{component}) and, with the prometheus metrics exporter, /metrics
// are served there.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, set at build time.
var (
	version   = "dev"
	buildTime = "unknown"
)

type cliFlags struct {
	configPath  string
	showVersion bool
}

func parseFlags() cliFlags {
	configPath := flag.String("config", os.Getenv("LLMGUARD_CONFIG"), "Path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{configPath: *configPath, showVersion: *showVersion}
}

func main() {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("llmguard %s (built %s)\n", version, buildTime)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags.configPath); err != nil {
		fmt.Fprintf(os.Stderr, "llmguard: %v\n", err)
		os.Exit(1)
	}
}
