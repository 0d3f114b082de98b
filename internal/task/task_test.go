package task

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCorpus = `
{"task_id":"notion-001","domain":"notion","instruction":"Create a page for the launch plan","expected_actions":[{"tool":"notion_create_page","arguments":{"title":"Launch"},"required_args":[{"field":"title","validator":"not_empty"}]}],"optimal_steps":1,"max_steps":3}

{"task_id":"gmail-002","domain":"gmail","instruction":"Email the report to ana@example.com","expected_actions":[{"tool":"gmail_send_email","required_args":[{"field":"to","validator":"is_email"},{"field":"body","validator":"contains","value":"report"}]}],"optimal_steps":2,"max_steps":5}
`

func TestParse_Corpus(t *testing.T) {
	defs, err := Parse(strings.NewReader(sampleCorpus))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "notion-001", defs[0].TaskID)
	assert.Equal(t, "notion", defs[0].Domain)
	assert.Equal(t, 1, defs[0].Criteria.OptimalSteps)
	assert.Equal(t, 3, defs[0].Criteria.MaxSteps)

	require.Len(t, defs[1].Criteria.RequiredTools, 1)
	exp := defs[1].Criteria.RequiredTools[0]
	assert.Equal(t, "gmail_send_email", exp.ToolName)
	require.Len(t, exp.RequiredArgs, 2)
	assert.Equal(t, ValidatorIsEmail, exp.RequiredArgs[0].Validator)
	assert.Equal(t, ValidatorContains, exp.RequiredArgs[1].Validator)
	assert.Equal(t, "report", exp.RequiredArgs[1].Value)
}

func TestParse_UnknownValidatorFailsLoad(t *testing.T) {
	corpus := `{"task_id":"t1","instruction":"x","expected_actions":[{"tool":"a","required_args":[{"field":"f","validator":"is_prime"}]}],"optimal_steps":1,"max_steps":2}`

	_, err := Parse(strings.NewReader(corpus))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown validator")
}

func TestParse_RejectsInvalidLines(t *testing.T) {
	cases := []struct {
		name   string
		corpus string
	}{
		{"bad json", `{not json}`},
		{"missing task_id", `{"instruction":"x","optimal_steps":1,"max_steps":2}`},
		{"missing instruction", `{"task_id":"t","optimal_steps":1,"max_steps":2}`},
		{"max below optimal", `{"task_id":"t","instruction":"x","optimal_steps":5,"max_steps":2}`},
		{"equals without value", `{"task_id":"t","instruction":"x","expected_actions":[{"tool":"a","required_args":[{"field":"f","validator":"equals"}]}],"optimal_steps":1,"max_steps":2}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.corpus))
			assert.Error(t, err)
		})
	}
}

func TestRequiredToolNames_Distinct(t *testing.T) {
	c := SuccessCriteria{RequiredTools: []ToolExpectation{
		{ToolName: "a"}, {ToolName: "b"}, {ToolName: "a"},
	}}
	assert.Equal(t, []string{"a", "b"}, c.RequiredToolNames())
}

func TestPrompt_ContainsCompletionConvention(t *testing.T) {
	d := Definition{TaskID: "t1", Domain: "gmail", Instruction: "send it"}
	prompt := d.Prompt()
	assert.Contains(t, prompt, "TASK: t1")
	assert.Contains(t, prompt, "DOMAIN: gmail")
	assert.Contains(t, prompt, "send it")
	assert.Contains(t, prompt, "[TASK_COMPLETE]")
}

func TestSelect(t *testing.T) {
	defs := []Definition{{TaskID: "a"}, {TaskID: "b"}, {TaskID: "c"}}

	picked, err := Select(defs, []int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, "c", picked[0].TaskID)
	assert.Equal(t, "a", picked[1].TaskID)

	_, err = Select(defs, []int{3})
	assert.Error(t, err)

	all, err := Select(defs, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
