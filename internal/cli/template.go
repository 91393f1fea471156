package cli

import (
	"fmt"
	"os"

	"einvoice/internal/sheet"

	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template [out.xlsx]",
		Short: "Write a blank upload template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "invoice-template.xlsx"
			if len(args) == 1 {
				file = args[0]
			}
			data, err := sheet.TemplateBytes()
			if err != nil {
				return fmt.Errorf("build template: %w", err)
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s (%d columns)\n", file, len(sheet.Columns))
			return nil
		},
	}
}
