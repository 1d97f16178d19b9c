package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/yoloplan/pkg/model"
	"github.com/openfroyo/yoloplan/pkg/model/modeltest"
)

const batteryPolicy = `# Moves must not drain more than the battery holds.
# severity: error
package custom.battery

import rego.v1

deny contains violation if {
	input.kind == "problem"
	some f in input.problem.fluents
	f.name == "battery_charge"
	not f.lower
	violation := {"message": "battery_charge needs a lower bound", "subject": f.name}
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	policyFile := filepath.Join(t.TempDir(), "battery-bounds.rego")
	writeFile(t, policyFile, batteryPolicy)

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "battery-bounds" {
		t.Errorf("Expected name 'battery-bounds', got '%s'", policy.Name)
	}
	if policy.Severity != SeverityError {
		t.Errorf("Severity = %s, want error from the directive", policy.Severity)
	}
	if policy.Description != "Moves must not drain more than the battery holds." {
		t.Errorf("Description = %q", policy.Description)
	}
	if policy.Source != policyFile {
		t.Errorf("Source = %q", policy.Source)
	}
	if !policy.Enabled || policy.Builtin {
		t.Errorf("Enabled = %v, Builtin = %v", policy.Enabled, policy.Builtin)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	policyFile := filepath.Join(t.TempDir(), "custom.json")

	data, err := json.Marshal(Policy{
		Name:    "json-policy",
		Rego:    "package json.policy\n",
		Enabled: true,
		Builtin: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, policyFile, string(data))

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if policy.Name != "json-policy" {
		t.Errorf("Name = %q", policy.Name)
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Severity = %s, want the warning default", policy.Severity)
	}
	if policy.Builtin {
		t.Error("file policies are never built in")
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported type", "policy.txt", "hello"},
		{"invalid json", "policy.json", "{not json"},
		{"json without name", "unnamed.json", `{"rego": "package x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)
			if _, err := loader.loadFromFile(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "nested", "b_test.rego"), "package b_test\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# policies\n")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].Name != "a" || policies[1].Name != "b" {
		t.Errorf("policies = %s, %s", policies[0].Name, policies[1].Name)
	}
}

func TestLoadFromPaths_NonExistent(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"leading comments", "# First line\n# second line\npackage x\n", "First line second line"},
		{"after package", "package x\n\n# Checks things\nimport rego.v1\n", "Checks things"},
		{"directive skipped", "# severity: error\n# Real text\npackage x\n", "Real text"},
		{"none", "package x\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDescription(tt.content); got != tt.want {
				t.Errorf("extractDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSeverity(t *testing.T) {
	tests := []struct {
		content string
		want    Severity
	}{
		{"# severity: info\n", SeverityInfo},
		{"  #   severity:   error  \n", SeverityError},
		{"# severity: critical\n", ""},
		{"package x\n", ""},
	}

	for _, tt := range tests {
		if got := extractSeverity(tt.content); got != tt.want {
			t.Errorf("extractSeverity(%q) = %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestEngine_LoadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "battery-bounds.rego"), batteryPolicy)

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	p := modeltest.Robot()
	for i := range p.Fluents {
		if p.Fluents[i].Name == "battery_charge" {
			p.Fluents[i].Lower = nil
		}
	}

	result, err := eng.EvaluateProblem(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("EvaluateProblem() error = %v", err)
	}
	got := violationsOf(result, "battery-bounds")
	if len(got) != 1 {
		t.Fatalf("expected one violation, got %+v", result.Violations)
	}
	if got[0].Severity != SeverityError || result.Allowed {
		t.Errorf("Severity = %s, Allowed = %v", got[0].Severity, result.Allowed)
	}

	// Reload keeps file policies.
	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("ReloadPolicies() error = %v", err)
	}
	if _, err := eng.GetPolicy("battery-bounds"); err != nil {
		t.Errorf("file policy lost on reload: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{filepath.Join(dir, "missing.rego")}); err == nil {
		t.Error("expected an error for a missing file")
	}

	if _, err := eng.EvaluatePlan(context.Background(), p, &model.Plan{}, Options{}); err != nil {
		t.Errorf("EvaluatePlan() error = %v", err)
	}
}
