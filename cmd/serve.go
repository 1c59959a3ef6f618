// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/websec-cli/internal/server"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the scanner, history, assistant and intel feed over HTTP",
		Long: `Starts the JSON API with a WebSocket stream of live scan progress at
/api/scans/stream. The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, cfg, logger, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			srv := server.New(cfg.Server(), logger, components.Orchestrator, components.History, components.Chat)
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address, e.g. 127.0.0.1:8088. Overrides config/env")
	return cmd
}
