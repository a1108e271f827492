package cli

import (
	"probloom-client/internal/app"
	"probloom-client/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewFetchCmd loads problem sets once and prints the resulting state tree.
func NewFetchCmd(configPath *string) *cobra.Command {
	var problemSetID, problemID int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch problem sets and print the resulting state as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			api, cleanup, err := newBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			service := app.NewProblemService(api, app.NewStore(app.WithLogger(logger)), logger)
			ctx := cmd.Context()
			if err := service.LoadProblemSets(ctx); err != nil {
				return err
			}
			if problemSetID > 0 {
				if err := service.OpenProblemSet(ctx, problemSetID); err != nil {
					return err
				}
			}
			if problemID > 0 {
				if err := service.LoadProblem(ctx, problemID); err != nil {
					return err
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(service.Store().State())
		},
	}
	cmd.Flags().IntVar(&problemSetID, "id", 0, "problem set to open")
	cmd.Flags().IntVar(&problemID, "problem", 0, "problem to open")
	return cmd
}
