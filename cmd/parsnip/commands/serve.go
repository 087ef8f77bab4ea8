package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parsnip-dev/parsnip/internal/mcpserver"
)

var (
	serveTransport   string
	serveAddr        string
	serveSSEEndpoint string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio or SSE",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			log.Info("received shutdown signal, stopping server")
			cancel()
		}()

		srv := mcpserver.New(engineOf())

		log.Info("starting parsnip MCP server (transport=%s)", serveTransport)
		switch serveTransport {
		case "stdio":
			return srv.Run(ctx)
		case "sse":
			return srv.RunSSE(ctx, serveAddr, serveSSEEndpoint)
		default:
			return fmt.Errorf("unknown transport %q (expected stdio or sse)", serveTransport)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "stdio or sse")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on for the sse transport")
	serveCmd.Flags().StringVar(&serveSSEEndpoint, "sse-endpoint", "/sse", "SSE endpoint path")

	rootCmd.AddCommand(serveCmd)
}
