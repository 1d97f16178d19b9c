package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/yoloplan/pkg/config"
	"github.com/openfroyo/yoloplan/pkg/model"
	"github.com/openfroyo/yoloplan/pkg/planner"
	"github.com/openfroyo/yoloplan/pkg/policy"
)

// loadProblem reads a problem document and converts it to a problem.
func loadProblem(path string) (*config.Document, *model.Problem, error) {
	loader, err := config.NewLoader(log.Logger)
	if err != nil {
		return nil, nil, err
	}
	doc, err := loader.Load(path)
	if err != nil {
		return nil, nil, err
	}
	problem, err := doc.ToProblem()
	if err != nil {
		return nil, nil, err
	}
	return doc, problem, nil
}

// newPolicyEngine creates a policy engine with the built-in policies and any
// policies found under paths.
func newPolicyEngine(ctx context.Context, paths []string) (*policy.Engine, error) {
	engine, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		if err := engine.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// writeStructured encodes v as JSON or YAML. YAML goes through JSON so both
// formats use the same field names.
func writeStructured(w io.Writer, format string, v interface{}) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func printResult(w io.Writer, result *planner.Result) error {
	if outputFormat != "text" {
		return writeStructured(w, outputFormat, result)
	}

	if !result.Solved() {
		fmt.Fprintln(w, "No plan found!")
		fmt.Fprintf(w, "%s: %s after %d tries (%d restarts), seed %d, %s\n",
			result.Problem, result.Status, result.Stats.Tries, result.Stats.Restarts,
			result.Seed, result.Duration.Round(time.Microsecond))
		printViolations(w, result.Violations)
		return nil
	}

	fmt.Fprintf(w, "%s found a plan for %s with %d actions:\n", result.Engine, result.Problem, result.Plan.Len())
	for i, action := range result.Plan.Actions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, action)
	}
	fmt.Fprintf(w, "%d tries, %d restarts, %d backtracks, seed %d, %s\n",
		result.Stats.Tries, result.Stats.Restarts, result.Stats.Backtracks,
		result.Seed, result.Duration.Round(time.Microsecond))
	printViolations(w, result.Violations)
	return nil
}

func printViolations(w io.Writer, violations []policy.Violation) {
	for _, v := range violations {
		subject := ""
		if v.Subject != "" {
			subject = " [" + v.Subject + "]"
		}
		fmt.Fprintf(w, "%s: %s%s: %s\n", strings.ToUpper(string(v.Severity)), v.Policy, subject, v.Message)
	}
}
