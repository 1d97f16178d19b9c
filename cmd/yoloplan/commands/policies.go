package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPoliciesCommand() *cobra.Command {
	var policyPaths []string

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List policies",
		Long: `List the built-in policies and any loaded with --policy.

Policies are Rego modules with a deny set. Problem policies run before the
search and error-severity violations reject the problem; plan policies run
on the plan found and only report.`,
		Example: `  yoloplan policies
  yoloplan policies --policy ./policies -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newPolicyEngine(cmd.Context(), policyPaths)
			if err != nil {
				return err
			}
			list := engine.ListPolicies()

			w := cmd.OutOrStdout()
			if outputFormat != "text" {
				return writeStructured(w, outputFormat, list)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tSOURCE\tTAGS\tDESCRIPTION")
			for _, p := range list {
				source := p.Source
				if p.Builtin {
					source = "builtin"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.Name, p.Severity, source, strings.Join(p.Tags, ","), p.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")

	return cmd
}
