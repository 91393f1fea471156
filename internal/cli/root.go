// Package cli implements invoicectl, an offline companion to the API for
// checking upload sheets before they are sent.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Output formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

type rootOptions struct {
	output string
}

// NewRootCmd builds the invoicectl command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Check FBR invoice upload sheets offline",
		Long: `invoicectl reads an invoice upload sheet (.xlsx or .csv), verifies the
column header and previews the invoices the API would create from it.

Example Usage:
  invoicectl check invoices.xlsx            # Preview grouped invoices and totals
  invoicectl check invoices.csv -o json     # Same, as JSON
  invoicectl template template.xlsx         # Write a blank upload template`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case FormatTable, FormatJSON, FormatYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q", opts.output)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", FormatTable, "Output format: table, json or yaml")

	root.AddCommand(
		newCheckCmd(opts),
		newTemplateCmd(),
		newVersionCmd(),
	)
	return root
}
