// Package scoring reduces a finalized tool call trace to a weighted score
// vector. Score is a pure function: no hidden state, identical inputs yield
// identical output across runs.
package scoring

import (
	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/AX-AIAgents/AgentX/internal/task"
)

// Weights of the three scoring dimensions. Project docs have historically
// disagreed on the action/argument ordering; 0.5/0.4 is the authoritative
// definition.
const (
	WeightAction     = 0.5
	WeightArgument   = 0.4
	WeightEfficiency = 0.1
)

// SuccessThreshold is the total score at or above which a run counts as
// successful.
const SuccessThreshold = 0.5

// ScoreVector holds the per-dimension scores and their weighted total,
// each in [0, 1]. Derived from a trace, never stored as mutable state.
type ScoreVector struct {
	Action     float64 `json:"action"`
	Argument   float64 `json:"argument"`
	Efficiency float64 `json:"efficiency"`
	Total      float64 `json:"total"`
}

// Success reports whether the total clears the success threshold.
func (v ScoreVector) Success() bool {
	return v.Total >= SuccessThreshold
}

// Breakdown explains a ScoreVector for reporting. Slices follow the
// criteria declaration order so output is stable across runs.
type Breakdown struct {
	MatchedTools []string        `json:"matched_tools"`
	MissingTools []string        `json:"missing_tools"`
	ChecksPassed int             `json:"checks_passed"`
	ChecksTotal  int             `json:"checks_total"`
	ToolChecks   []ToolCheckStat `json:"tool_checks,omitempty"`
	ActualSteps  int             `json:"actual_steps"`
	OptimalSteps int             `json:"optimal_steps"`
	MaxSteps     int             `json:"max_steps"`
}

// ToolCheckStat is the per-required-tool argument check tally.
type ToolCheckStat struct {
	Tool   string `json:"tool"`
	Passed int    `json:"passed"`
	Total  int    `json:"total"`
	Called bool   `json:"called"`
}

// Score computes the score vector for a trace against the task's success
// criteria.
func Score(trace []session.ToolCallRecord, criteria task.SuccessCriteria) ScoreVector {
	v, _ := ScoreWithBreakdown(trace, criteria)
	return v
}

// ScoreWithBreakdown computes the score vector along with its explanation.
func ScoreWithBreakdown(trace []session.ToolCallRecord, criteria task.SuccessCriteria) (ScoreVector, Breakdown) {
	action, bd := actionScore(trace, criteria)
	argument := argumentScore(trace, criteria, &bd)
	efficiency := efficiencyScore(trace, criteria, &bd)

	v := ScoreVector{
		Action:     action,
		Argument:   argument,
		Efficiency: efficiency,
	}
	v.Total = WeightAction*v.Action + WeightArgument*v.Argument + WeightEfficiency*v.Efficiency
	return v, bd
}

// actionScore is set-based: a required tool counts once no matter how many
// times it was called or with what arguments.
func actionScore(trace []session.ToolCallRecord, criteria task.SuccessCriteria) (float64, Breakdown) {
	bd := Breakdown{MatchedTools: []string{}, MissingTools: []string{}}

	required := criteria.RequiredToolNames()
	if len(required) == 0 {
		return 1.0, bd
	}

	called := make(map[string]bool, len(trace))
	for _, rec := range trace {
		called[rec.ToolName] = true
	}

	for _, name := range required {
		if called[name] {
			bd.MatchedTools = append(bd.MatchedTools, name)
		} else {
			bd.MissingTools = append(bd.MissingTools, name)
		}
	}

	return float64(len(bd.MatchedTools)) / float64(len(required)), bd
}

// argumentScore accumulates passed/total over every declared check. For a
// tool called more than once, the call satisfying the most checks counts,
// first occurrence winning ties. A required tool never called contributes
// zero passed and its full check count; it cannot be skipped. With no
// declared checks the dimension is vacuous only once every required tool
// was actually called.
func argumentScore(trace []session.ToolCallRecord, criteria task.SuccessCriteria, bd *Breakdown) float64 {
	totalChecks := 0
	passedChecks := 0

	for _, exp := range criteria.RequiredTools {
		if len(exp.RequiredArgs) == 0 {
			continue
		}
		totalChecks += len(exp.RequiredArgs)

		stat := ToolCheckStat{Tool: exp.ToolName, Total: len(exp.RequiredArgs)}

		bestPassed := 0
		for _, rec := range trace {
			if rec.ToolName != exp.ToolName {
				continue
			}
			stat.Called = true

			passed := 0
			for _, check := range exp.RequiredArgs {
				if check.Evaluate(rec.Arguments) {
					passed++
				}
			}
			// Strictly greater keeps the first occurrence on ties.
			if passed > bestPassed {
				bestPassed = passed
			}
		}

		stat.Passed = bestPassed
		passedChecks += bestPassed
		bd.ToolChecks = append(bd.ToolChecks, stat)
	}

	bd.ChecksPassed = passedChecks
	bd.ChecksTotal = totalChecks

	if totalChecks == 0 {
		if len(bd.MissingTools) == 0 {
			return 1.0
		}
		return 0.0
	}
	return float64(passedChecks) / float64(totalChecks)
}

// efficiencyScore falls off linearly from optimal to max steps.
func efficiencyScore(trace []session.ToolCallRecord, criteria task.SuccessCriteria, bd *Breakdown) float64 {
	n := len(trace)
	optimal := criteria.OptimalSteps
	maxSteps := criteria.MaxSteps

	bd.ActualSteps = n
	bd.OptimalSteps = optimal
	bd.MaxSteps = maxSteps

	switch {
	case n <= optimal:
		return 1.0
	case maxSteps <= optimal:
		// Degenerate budget: anything beyond optimal scores zero.
		return 0.0
	case n <= maxSteps:
		return float64(maxSteps-n) / float64(maxSteps-optimal)
	default:
		return 0.0
	}
}
