// Command parsnip-mcp is the standalone MCP server entrypoint, for clients
// that launch a dedicated long-lived server process: config.Load resolves
// storage/transport settings from flags, environment, and config.toml the
// same way cmd/parsnip does, and pkg/parsnip.Open wires the resulting
// backend into an engine the MCP server runs over.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/parsnip-dev/parsnip/internal/config"
	"github.com/parsnip-dev/parsnip/internal/mcpserver"
	"github.com/parsnip-dev/parsnip/internal/metrics"
	"github.com/parsnip-dev/parsnip/pkg/parsnip"
)

func main() {
	fs := pflag.NewFlagSet("parsnip-mcp", pflag.ExitOnError)
	config.RegisterFlags(fs)
	transport := fs.String("transport", "stdio", "transport to use: stdio or sse")
	addr := fs.String("addr", ":8080", "address to listen on when using the sse transport")
	sseEndpoint := fs.String("sse-endpoint", "/sse", "SSE endpoint path when using the sse transport")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	cfg, _, err := config.Load(fs)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	metrics.InitFromEnv()

	svc, err := parsnip.Open(parsnip.FromInternal(cfg))
	if err != nil {
		log.Fatalf("open storage backend: %v", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Printf("error closing storage backend: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal, closing server")
		cancel()
	}()

	srv := mcpserver.New(svc.Engine())

	log.Printf("starting parsnip MCP server (transport=%s)", *transport)
	switch *transport {
	case "stdio":
		err = srv.Run(ctx)
	case "sse":
		err = srv.RunSSE(ctx, *addr, *sseEndpoint)
	default:
		log.Fatalf("unknown transport %q (expected stdio or sse)", *transport)
	}
	if err != nil {
		log.Printf("server error: %v", err)
	}

	log.Println("server stopped")
}
