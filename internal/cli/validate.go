package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mrecommender/internal/checker"
	"mrecommender/internal/dataset"
)

func createValidateCmd(a *app) *cobra.Command {
	var address string

	validateCmd := &cobra.Command{
		Use:   "validate [--host addr] <dataset-file>",
		Short: "Cross-validate a recommender against a prepared dataset",
		Long: `
Cross-validate a recommender against a prepared dataset

For every user the first 80% of their shows are POSTed as a JSON array to
http://<host>/test_recommendation and the recommendations are scored against
the remaining 20%. The mean hit ratio is printed as a percentage.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := dataset.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			c := checker.New(address, a.cfg.GetSubConfig("checker"), cmd.OutOrStdout(), a.logger)
			a.logger.Info("Validating recommender", "url", c.URL(), "records", len(records))

			if _, err := c.Validate(cmd.Context(), records); err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			return nil
		},
	}

	validateCmd.Flags().StringVarP(&address, "host", "H", checker.DefaultAddress, "Remote address to which the requests are sent")
	return validateCmd
}
