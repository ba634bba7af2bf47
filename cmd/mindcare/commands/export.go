package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mindcare/backend/internal/service/report"
)

var (
	exportUser   string
	exportKind   string
	exportFormat string
	exportOutput string
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's chat or mood log",
		Long: `Export the chat or mood log of one user as json, csv or pdf.

Examples:
  mindcare export --user asha --kind chat --format csv
  mindcare export --user asha --kind mood --format pdf --output mood_logs.pdf`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVar(&exportUser, "user", "", "Username to export (required)")
	cmd.Flags().StringVar(&exportKind, "kind", "chat", "Log kind: chat or mood")
	cmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv or pdf")
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	kind, err := report.ParseKind(exportKind)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.Store.UserByUsername(cmd.Context(), exportUser)
	if err != nil {
		return fmt.Errorf("looking up %q: %w", exportUser, err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return a.Reports.Export(cmd.Context(), u.ID, kind, format, w)
}
