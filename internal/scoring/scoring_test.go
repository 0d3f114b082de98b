package scoring

import (
	"testing"

	"github.com/AX-AIAgents/AgentX/internal/session"
	"github.com/AX-AIAgents/AgentX/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(tool string, args map[string]any) session.ToolCallRecord {
	return session.ToolCallRecord{ToolName: tool, Arguments: args}
}

func criteriaAB() task.SuccessCriteria {
	return task.SuccessCriteria{
		RequiredTools: []task.ToolExpectation{
			{ToolName: "A"},
			{ToolName: "B"},
		},
		OptimalSteps: 2,
		MaxSteps:     5,
	}
}

func TestScoreEmptyTrace(t *testing.T) {
	v := Score(nil, criteriaAB())

	assert.Equal(t, 0.0, v.Action)
	assert.Equal(t, 0.0, v.Argument, "required tools never called satisfy no checks")
	assert.Equal(t, 1.0, v.Efficiency, "zero steps is within the optimal budget")
	assert.InDelta(t, 0.1, v.Total, 1e-9)
	assert.False(t, v.Success())
}

func TestScoreEmptyTraceWithChecks(t *testing.T) {
	criteria := criteriaAB()
	criteria.RequiredTools[0].RequiredArgs = []task.ArgumentCheck{
		{Field: "q", Validator: task.ValidatorExists},
	}

	v, bd := ScoreWithBreakdown(nil, criteria)

	assert.Equal(t, 0.0, v.Argument)
	assert.Equal(t, 0, bd.ChecksPassed)
	assert.Equal(t, 1, bd.ChecksTotal)
	require.Len(t, bd.ToolChecks, 1)
	assert.False(t, bd.ToolChecks[0].Called)
}

func TestScoreAllRequiredCalled(t *testing.T) {
	trace := []session.ToolCallRecord{
		call("A", map[string]any{"x": 1}),
		call("B", nil),
	}

	v, bd := ScoreWithBreakdown(trace, criteriaAB())

	assert.Equal(t, 1.0, v.Action)
	assert.Equal(t, 1.0, v.Argument, "no declared checks means full marks")
	assert.Equal(t, 1.0, v.Efficiency)
	assert.InDelta(t, 1.0, v.Total, 1e-9)
	assert.True(t, v.Success())
	assert.Equal(t, []string{"A", "B"}, bd.MatchedTools)
	assert.Empty(t, bd.MissingTools)
}

func TestScoreNoChecksRequiresFullCoverage(t *testing.T) {
	// Without declared checks the argument dimension follows tool coverage:
	// a missing required tool zeroes it, it never defaults to full marks.
	trace := []session.ToolCallRecord{call("A", nil)}

	v := Score(trace, criteriaAB())

	assert.Equal(t, 0.5, v.Action)
	assert.Equal(t, 0.0, v.Argument)
	assert.InDelta(t, 0.5*0.5+0.1, v.Total, 1e-9)
}

func TestScoreNoRequiredTools(t *testing.T) {
	criteria := task.SuccessCriteria{OptimalSteps: 1, MaxSteps: 3}

	v := Score(nil, criteria)

	assert.Equal(t, 1.0, v.Action)
	assert.Equal(t, 1.0, v.Argument)
	assert.InDelta(t, 1.0, v.Total, 1e-9)
}

func TestScoreActionSetBased(t *testing.T) {
	// Calling A five times does not stand in for B.
	trace := []session.ToolCallRecord{
		call("A", nil), call("A", nil), call("A", nil),
		call("A", nil), call("A", nil),
	}

	v, bd := ScoreWithBreakdown(trace, criteriaAB())

	assert.Equal(t, 0.5, v.Action)
	assert.Equal(t, []string{"B"}, bd.MissingTools)
}

func TestScoreEfficiencyFalloff(t *testing.T) {
	criteria := criteriaAB()

	tests := []struct {
		steps int
		want  float64
	}{
		{0, 1.0},
		{2, 1.0},
		{3, 2.0 / 3.0},
		{4, 1.0 / 3.0},
		{5, 0.0},
		{6, 0.0},
	}

	for _, tt := range tests {
		trace := make([]session.ToolCallRecord, tt.steps)
		for i := range trace {
			trace[i] = call("A", nil)
		}
		v := Score(trace, criteria)
		assert.InDelta(t, tt.want, v.Efficiency, 1e-9, "steps=%d", tt.steps)
	}
}

func TestScoreEfficiencyDegenerateBudget(t *testing.T) {
	criteria := criteriaAB()
	criteria.OptimalSteps = 3
	criteria.MaxSteps = 3

	within := []session.ToolCallRecord{call("A", nil), call("B", nil)}
	assert.Equal(t, 1.0, Score(within, criteria).Efficiency)

	over := append(within, call("A", nil), call("A", nil))
	assert.Equal(t, 0.0, Score(over, criteria).Efficiency)
}

func TestScoreArgumentBestCall(t *testing.T) {
	criteria := task.SuccessCriteria{
		RequiredTools: []task.ToolExpectation{
			{ToolName: "send_email", RequiredArgs: []task.ArgumentCheck{
				{Field: "to", Validator: task.ValidatorIsEmail},
				{Field: "subject", Validator: task.ValidatorNotEmpty},
			}},
		},
		OptimalSteps: 1,
		MaxSteps:     3,
	}

	trace := []session.ToolCallRecord{
		call("send_email", map[string]any{"to": "nope", "subject": ""}),
		call("send_email", map[string]any{"to": "a@b.com", "subject": "hi"}),
	}

	v, bd := ScoreWithBreakdown(trace, criteria)

	assert.Equal(t, 1.0, v.Argument)
	require.Len(t, bd.ToolChecks, 1)
	assert.Equal(t, 2, bd.ToolChecks[0].Passed)
	assert.True(t, bd.ToolChecks[0].Called)
}

func TestScoreArgumentEmptyArgumentsCall(t *testing.T) {
	criteria := task.SuccessCriteria{
		RequiredTools: []task.ToolExpectation{
			{ToolName: "search", RequiredArgs: []task.ArgumentCheck{
				{Field: "query", Validator: task.ValidatorExists},
			}},
		},
		OptimalSteps: 1,
		MaxSteps:     3,
	}

	// Called with explicitly empty arguments: action credit, no check credit.
	trace := []session.ToolCallRecord{call("search", map[string]any{})}

	v, bd := ScoreWithBreakdown(trace, criteria)

	assert.Equal(t, 1.0, v.Action)
	assert.Equal(t, 0.0, v.Argument)
	assert.Equal(t, 0, bd.ChecksPassed)
	assert.Equal(t, 1, bd.ChecksTotal)
	assert.True(t, bd.ToolChecks[0].Called)
}

func TestScoreDeterministic(t *testing.T) {
	criteria := criteriaAB()
	criteria.RequiredTools[0].RequiredArgs = []task.ArgumentCheck{
		{Field: "url", Validator: task.ValidatorContainsHTTP},
	}
	trace := []session.ToolCallRecord{
		call("A", map[string]any{"url": "https://example.com"}),
		call("B", map[string]any{"n": 2}),
		call("C", nil),
	}

	first := Score(trace, criteria)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(trace, criteria))
	}
}

func TestScoreWeights(t *testing.T) {
	assert.InDelta(t, 1.0, WeightAction+WeightArgument+WeightEfficiency, 1e-9)
}
