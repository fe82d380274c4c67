package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/mediacheck"
)

const defaultCheckKeyword = "烟火里的尘埃"

func newCheckCmd() *cobra.Command {
	var (
		serverName string
		keyword    string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Runs an end-to-end media check against a provider",
		Long: `Searches the provider for a keyword, resolves the first hit's media
and artwork links, then probes both with a pause in between to stay under
provider rate limits. Prints the report as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			if serverName == "" {
				serverName = cfg.Gateway.DefaultServer
			}
			client, err := appInstance.Registry().New(serverName)
			if err != nil {
				return err
			}

			report, err := mediacheck.Run(cmd.Context(), client, appInstance.Prober(), mediacheck.Options{
				Keyword:     keyword,
				Bitrate:     cfg.Gateway.DefaultBitrate,
				PictureSize: cfg.Gateway.DefaultPicSize,
				Pause:       cfg.ProbePause(),
			}, appInstance.Logger().Named("check"))
			if err != nil {
				appInstance.Logger().Error("media check failed", zap.String("server", serverName), zap.Error(err))
				return fmt.Errorf("check failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverName, "server", "", "provider server name (default gateway.default_server)")
	cmd.Flags().StringVar(&keyword, "keyword", defaultCheckKeyword, "search keyword")
	return cmd
}
