package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/yoloplan/pkg/model"
	"github.com/openfroyo/yoloplan/pkg/policy"
	"github.com/openfroyo/yoloplan/pkg/validation"
)

type validateReport struct {
	Problem    string             `json:"problem"`
	Valid      bool               `json:"valid"`
	Violations []policy.Violation `json:"violations,omitempty"`
	Plan       *validation.Report `json:"plan,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		planFile    string
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "validate <problem>",
		Short: "Validate a problem document and optionally a plan",
		Long: `Validate a problem document.

This command checks:
  - document syntax (YAML, JSON or CUE)
  - conformance to the problem schema
  - references between types, objects, fluents and actions
  - policy compliance (OPA/rego)

With --plan it also simulates a plan, one action instance per line, from
the initial state and reports where it fails. Exits with 2 when the plan
or a blocking policy fails.`,
		Example: `  # Validate a problem
  yoloplan validate examples/robot.yaml

  # Validate a plan against it
  yoloplan validate examples/robot.yaml --plan robot.plan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log.Debug().Str("path", args[0]).Str("plan", planFile).Msg("Validating problem")

			_, problem, err := loadProblem(args[0])
			if err != nil {
				return err
			}

			policies, err := newPolicyEngine(ctx, policyPaths)
			if err != nil {
				return err
			}
			checked, err := policies.EvaluateProblem(ctx, problem, policy.Options{})
			if err != nil {
				return err
			}

			report := &validateReport{
				Problem:    problem.Name,
				Valid:      len(checked.Blocking()) == 0,
				Violations: checked.Violations,
			}

			if planFile != "" {
				plan, err := readPlan(planFile)
				if err != nil {
					return err
				}
				sim, err := validation.New().Simulate(ctx, problem, plan)
				if err != nil {
					return err
				}
				report.Plan = sim
				report.Valid = report.Valid && sim.Verdict.Valid

				checked, err := policies.EvaluatePlan(ctx, problem, plan, policy.Options{})
				if err != nil {
					return err
				}
				report.Violations = append(report.Violations, checked.Violations...)
			}

			if err := printValidateReport(cmd, report); err != nil {
				return err
			}
			if !report.Valid {
				return &ExitError{Code: 2, Message: "validation failed"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "plan file to validate against the problem")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or directories")

	return cmd
}

func readPlan(path string) (*model.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan: %w", err)
	}
	defer f.Close()

	plan, err := model.ParsePlan(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

func printValidateReport(cmd *cobra.Command, report *validateReport) error {
	w := cmd.OutOrStdout()
	if outputFormat != "text" {
		return writeStructured(w, outputFormat, report)
	}

	fmt.Fprintf(w, "Problem %s is well formed\n", report.Problem)
	printViolations(w, report.Violations)
	if report.Plan == nil {
		return nil
	}
	if report.Plan.Verdict.Valid {
		fmt.Fprintf(w, "Plan is valid (%d actions)\n", report.Plan.Applied)
		return nil
	}
	fmt.Fprintf(w, "Plan is invalid after %d actions: %s\n", report.Plan.Applied, report.Plan.Verdict)
	return nil
}
