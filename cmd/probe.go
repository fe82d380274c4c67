package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url>...",
		Short: "Probes media links and prints where they land",
		Long: `Issues HEAD requests (falling back to a one-byte ranged GET when HEAD
is rejected), follows redirects up to the configured hop bound and prints
one JSON result per URL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			for _, target := range args {
				res, err := appInstance.Prober().Probe(cmd.Context(), target)
				if err != nil {
					appInstance.Logger().Error("probe failed", zap.String("url", target), zap.Error(err))
					return fmt.Errorf("probe %s: %w", target, err)
				}
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
			}
			return nil
		},
	}
}
