package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/meting-gateway/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP gateway",
		Long: `Starts the Meting HTTP surface on the configured port (PORT wins
over server.port). The process drains in-flight requests on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			srv := server.New(server.Config{
				Port:              cfg.Server.Port,
				ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
			}, appInstance.APIServer().Handler(), appInstance.Logger().Named("server"))
			return srv.Run(cmd.Context())
		},
	}
}
