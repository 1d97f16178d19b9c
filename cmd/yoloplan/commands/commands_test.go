package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openfroyo/yoloplan/pkg/planner"
	"github.com/openfroyo/yoloplan/pkg/stores"
)

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), 1},
		{&ExitError{Code: 2, Message: "no plan found"}, 2},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestSolve_Text(t *testing.T) {
	out, err := run(t, "solve", "testdata/robot.yaml")
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !strings.Contains(out, "YOLOPlanner found a plan for robot") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "1. move(l1, l2)") {
		t.Errorf("plan missing from output:\n%s", out)
	}
	if !strings.Contains(out, "seed 7") {
		t.Errorf("seed from the planner section not used:\n%s", out)
	}
}

func TestSolve_FlagsOverrideDocument(t *testing.T) {
	out, err := run(t, "solve", "testdata/robot.yaml", "--max-tries", "0", "--seed", "3")
	if ExitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
	if !strings.Contains(out, "No plan found!") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "exhausted after 0 tries") || !strings.Contains(out, "seed 3") {
		t.Errorf("flags were not applied:\n%s", out)
	}
}

func TestSolve_JSONAndHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := run(t, "solve", "testdata/robot.yaml", "--db", db, "-o", "json")
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}

	var result planner.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if result.Status != planner.StatusSolved || result.Plan.String() != "move(l1, l2)" {
		t.Fatalf("unexpected result: %+v", result)
	}

	out, err = run(t, "history", "list", "--db", db, "-o", "json")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	var runs []stores.SolveRun
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].ID != result.RunID || runs[0].Status != stores.RunStatusSolved {
		t.Fatalf("unexpected history: %+v", runs)
	}

	out, err = run(t, "history", "show", result.RunID, "--db", db)
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	for _, want := range []string{result.RunID, "solved_satisficing", "move(l1, l2)", "solve.started", "solve.completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("history show output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "history", "delete", result.RunID, "--db", db); err != nil {
		t.Fatalf("history delete failed: %v", err)
	}
	if _, err := run(t, "history", "show", result.RunID, "--db", db); !errors.Is(err, stores.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSolve_YAML(t *testing.T) {
	out, err := run(t, "solve", "testdata/robot.yaml", "-o", "yaml")
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !strings.Contains(out, "status: solved_satisficing") || !strings.Contains(out, "engine: YOLOPlanner") {
		t.Errorf("unexpected YAML output:\n%s", out)
	}
}

func TestSolve_MissingFile(t *testing.T) {
	if _, err := run(t, "solve", "testdata/missing.yaml"); ExitCode(err) != 1 {
		t.Errorf("expected exit code 1, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		want     string
	}{
		{"problem only", []string{"validate", "testdata/robot.yaml"}, 0, "Problem robot is well formed"},
		{"valid plan", []string{"validate", "testdata/robot.yaml", "--plan", "testdata/good.plan"}, 0, "Plan is valid (1 actions)"},
		{"invalid plan", []string{"validate", "testdata/robot.yaml", "--plan", "testdata/bad.plan"}, 2, "Plan is invalid after 0 actions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if got := ExitCode(err); got != tt.wantCode {
				t.Fatalf("exit code = %d (%v), want %d", got, err, tt.wantCode)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestGround(t *testing.T) {
	out, err := run(t, "ground", "testdata/robot.yaml")
	if err != nil {
		t.Fatalf("ground failed: %v", err)
	}
	for _, want := range []string{"robot: 2 grounded actions (2 pruned)", "move(l1, l2)", "move(l2, l1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPolicies(t *testing.T) {
	out, err := run(t, "policies")
	if err != nil {
		t.Fatalf("policies failed: %v", err)
	}
	for _, name := range []string{"action-effects", "declared-types", "goal-present", "plan-length"} {
		if !strings.Contains(out, name) {
			t.Errorf("policy %s not listed:\n%s", name, out)
		}
	}
}

func TestUnsupportedOutput(t *testing.T) {
	if _, err := run(t, "policies", "-o", "xml"); err == nil {
		t.Error("expected an error for an unsupported output format")
	}
}
