package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTherapistsCmd creates the therapists command group
func NewTherapistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "therapists",
		Short: "Manage the therapist directory",
	}
	cmd.AddCommand(newTherapistsRefreshCmd())
	return cmd
}

func newTherapistsRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch therapists now and rewrite the directory file",
		Long: `Query Google Places (when GOOGLE_PLACES_API_KEY is set) and Practo, then
write the merged list to THERAPIST_OUTPUT_PATH. The existing file is kept when
every source fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Therapists.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d therapists to %s\n", len(list), a.Config.Therapist.OutputPath)
			return nil
		},
	}
}
