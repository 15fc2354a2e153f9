package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mrecommender/internal/dataset"
)

func createPrepareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare <in-file> [out-file]",
		Short: "Aggregate a user,show,created_at CSV dump into a dataset file",
		Long: fmt.Sprintf(`
Aggregate a user,show,created_at CSV dump into a dataset file

The input has no header. Rows with <nil> ids are skipped and users with fewer
than %d shows are dropped. Each output line reads "<user>: <show>,<show>,...".
out-file defaults to %s.
`, dataset.MinShowsPerUser, dataset.DefaultOutputPath),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := dataset.DefaultOutputPath
			if len(args) == 2 {
				outPath = args[1]
			}

			users, err := dataset.PrepareFile(cmd.Context(), args[0], outPath, a.logger)
			if err != nil {
				return fmt.Errorf("prepare: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d users written to %s\n", users, outPath)
			return nil
		},
	}
}
