package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/yoloplan/pkg/grounding"
)

type groundedAction struct {
	Name     string `json:"name"`
	Instance string `json:"instance"`
}

type groundReport struct {
	Problem string           `json:"problem"`
	Size    int              `json:"size"`
	Pruned  int              `json:"pruned"`
	Actions []groundedAction `json:"actions"`
}

func newGroundCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ground <problem>",
		Short: "List the grounded action pool",
		Long: `Ground a problem and list the actions the search samples from.

Every action schema is instantiated with every type-compatible tuple of
objects. Instances whose static preconditions are false in the initial
state are pruned.`,
		Example: `  yoloplan ground examples/robot.yaml
  yoloplan ground examples/robot.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, problem, err := loadProblem(args[0])
			if err != nil {
				return err
			}

			result, err := grounding.Ground(cmd.Context(), problem)
			if err != nil {
				return err
			}

			report := groundReport{
				Problem: problem.Name,
				Size:    result.Size(),
				Pruned:  result.Pruned,
				Actions: make([]groundedAction, 0, result.Size()),
			}
			for _, a := range result.Actions() {
				inst, err := result.MapBack(a.Name)
				if err != nil {
					return err
				}
				report.Actions = append(report.Actions, groundedAction{Name: a.Name, Instance: inst.String()})
			}

			w := cmd.OutOrStdout()
			if outputFormat != "text" {
				return writeStructured(w, outputFormat, report)
			}
			fmt.Fprintf(w, "%s: %d grounded actions (%d pruned)\n", report.Problem, report.Size, report.Pruned)
			for _, a := range report.Actions {
				fmt.Fprintf(w, "  %s\n", a.Instance)
			}
			return nil
		},
	}

	return cmd
}
