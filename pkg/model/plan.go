package model

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var instancePattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?:\((.*)\))?$`)

// ParseActionInstance parses name(arg, ...). Parentheses are optional for
// actions without arguments.
func ParseActionInstance(s string) (ActionInstance, error) {
	m := instancePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ActionInstance{}, fmt.Errorf("malformed action instance %q", s)
	}
	inst := ActionInstance{Action: m[1]}
	if strings.TrimSpace(m[2]) == "" {
		return inst, nil
	}
	for _, arg := range strings.Split(m[2], ",") {
		arg = strings.TrimSpace(arg)
		if !identifier.MatchString(arg) {
			return ActionInstance{}, fmt.Errorf("malformed argument %q in %q", arg, s)
		}
		inst.Args = append(inst.Args, arg)
	}
	return inst, nil
}

// ParsePlan reads one action instance per line. Blank lines and lines starting
// with # are skipped.
func ParsePlan(r io.Reader) (*Plan, error) {
	plan := &Plan{Actions: []ActionInstance{}}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		inst, err := ParseActionInstance(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		plan.Actions = append(plan.Actions, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}
