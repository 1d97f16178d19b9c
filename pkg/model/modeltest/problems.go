// Package modeltest provides small planning problems for tests.
package modeltest

import (
	"github.com/openfroyo/yoloplan/pkg/model"
)

func bound(v float64) *float64 {
	return &v
}

// Robot returns the two-location robot problem: the robot starts at l1 with a
// full battery and must reach l2. Every move costs 10 charge.
func Robot() *model.Problem {
	return &model.Problem{
		Name:  "robot",
		Types: []model.Type{{Name: "Location"}},
		Objects: []model.Object{
			{Name: "l1", Type: "Location"},
			{Name: "l2", Type: "Location"},
		},
		Fluents: []model.Fluent{
			{Name: "robot_at", Params: []model.Parameter{{Name: "l", Type: "Location"}}, Kind: model.FluentBool},
			{Name: "battery_charge", Kind: model.FluentReal, Lower: bound(0), Upper: bound(100)},
		},
		Actions: []model.Action{
			{
				Name: "move",
				Parameters: []model.Parameter{
					{Name: "l_from", Type: "Location"},
					{Name: "l_to", Type: "Location"},
				},
				Preconditions: []string{
					"battery_charge() >= 10",
					"l_from != l_to",
					"robot_at(l_from)",
					"not robot_at(l_to)",
				},
				Effects: []model.Effect{
					{Fluent: "robot_at", Args: []string{"l_from"}, Value: "False"},
					{Fluent: "robot_at", Args: []string{"l_to"}, Value: "True"},
					{Fluent: "battery_charge", Op: model.OpDecrease, Value: "10"},
				},
			},
		},
		Init: []model.Assignment{
			{Fluent: "robot_at", Args: []string{"l1"}, Value: true},
			{Fluent: "robot_at", Args: []string{"l2"}, Value: false},
			{Fluent: "battery_charge", Value: 100},
		},
		Goals: []string{"robot_at(l2)"},
	}
}

// Unreachable returns the robot problem with a goal no plan can satisfy.
func Unreachable() *model.Problem {
	p := Robot()
	p.Name = "robot-unreachable"
	p.Goals = []string{"robot_at(l1) and robot_at(l2)"}
	return p
}

// Chain returns a problem with n switches that must be flipped in order:
// flip_k requires switch k-1 to be on.
func Chain() *model.Problem {
	return &model.Problem{
		Name:  "chain",
		Types: []model.Type{{Name: "Switch"}},
		Objects: []model.Object{
			{Name: "s1", Type: "Switch"},
			{Name: "s2", Type: "Switch"},
			{Name: "s3", Type: "Switch"},
		},
		Fluents: []model.Fluent{
			{Name: "on", Params: []model.Parameter{{Name: "s", Type: "Switch"}}},
			{Name: "next", Params: []model.Parameter{{Name: "a", Type: "Switch"}, {Name: "b", Type: "Switch"}}},
			{Name: "flips", Kind: model.FluentInt, Default: 0},
		},
		Actions: []model.Action{
			{
				Name:          "flip_first",
				Preconditions: []string{"not on(s1)"},
				Effects: []model.Effect{
					{Fluent: "on", Args: []string{"s1"}, Value: "True"},
					{Fluent: "flips", Op: model.OpIncrease, Value: "1"},
				},
			},
			{
				Name:          "flip",
				Parameters:    []model.Parameter{{Name: "a", Type: "Switch"}, {Name: "b", Type: "Switch"}},
				Preconditions: []string{"next(a, b)", "on(a)", "not on(b)"},
				Effects: []model.Effect{
					{Fluent: "on", Args: []string{"b"}, Value: "True"},
					{Fluent: "flips", Op: model.OpIncrease, Value: "1"},
				},
			},
		},
		Init: []model.Assignment{
			{Fluent: "next", Args: []string{"s1", "s2"}, Value: true},
			{Fluent: "next", Args: []string{"s2", "s3"}, Value: true},
		},
		Goals: []string{"all([on(s) for s in objects(\"Switch\")])"},
	}
}
