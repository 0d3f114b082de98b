// Package task defines the evaluation task corpus: immutable task
// definitions with success criteria, loaded from newline-delimited JSON.
package task

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ToolExpectation names a tool the participant must call, with the checks
// its arguments must satisfy.
type ToolExpectation struct {
	ToolName     string
	RequiredArgs []ArgumentCheck
}

// SuccessCriteria is the scoring contract for one task.
type SuccessCriteria struct {
	RequiredTools []ToolExpectation
	OptimalSteps  int
	MaxSteps      int
}

// RequiredToolNames returns the distinct required tool names in declaration order.
func (c SuccessCriteria) RequiredToolNames() []string {
	seen := make(map[string]bool, len(c.RequiredTools))
	var names []string
	for _, exp := range c.RequiredTools {
		if !seen[exp.ToolName] {
			seen[exp.ToolName] = true
			names = append(names, exp.ToolName)
		}
	}
	return names
}

// Definition is one evaluation task. Immutable once loaded.
type Definition struct {
	TaskID      string
	Domain      string
	Instruction string
	Criteria    SuccessCriteria
}

// Prompt frames the task instruction as the first evaluator message,
// including the completion convention the participant is expected to follow.
func (d Definition) Prompt() string {
	domain := d.Domain
	if domain == "" {
		domain = "general"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\n", d.TaskID)
	fmt.Fprintf(&b, "DOMAIN: %s\n\n", domain)
	b.WriteString("CUSTOMER REQUEST:\n")
	b.WriteString(d.Instruction)
	b.WriteString("\n\nYou have access to tools. Use them to fulfill the request.\n")
	b.WriteString("When done, say [TASK_COMPLETE].\n")
	return b.String()
}

// wireTask is the JSONL line format of the task corpus.
type wireTask struct {
	TaskID          string           `json:"task_id"`
	Domain          string           `json:"domain"`
	Instruction     string           `json:"instruction"`
	ExpectedActions []map[string]any `json:"expected_actions"`
	OptimalSteps    int              `json:"optimal_steps"`
	MaxSteps        int              `json:"max_steps"`
}

// expectedAction is the decoded shape of one expected_actions entry.
type expectedAction struct {
	Tool         string           `mapstructure:"tool"`
	Arguments    map[string]any   `mapstructure:"arguments"`
	RequiredArgs []map[string]any `mapstructure:"required_args"`
}

// argumentCheckParams is the decoded shape of one required_args entry.
type argumentCheckParams struct {
	Field     string `mapstructure:"field"`
	Validator string `mapstructure:"validator"`
	Value     any    `mapstructure:"value"`
}

// Load reads all task definitions from a JSONL file.
func Load(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening task file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	defs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return defs, nil
}

// Parse reads newline-delimited JSON task definitions from r. Blank lines
// are skipped; any malformed line or unknown validator fails the whole load.
func Parse(r io.Reader) ([]Definition, error) {
	var defs []Definition

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var wt wireTask
		if err := json.Unmarshal([]byte(line), &wt); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		def, err := fromWireTask(wt)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		defs = append(defs, def)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}

func fromWireTask(wt wireTask) (Definition, error) {
	def := Definition{
		TaskID:      wt.TaskID,
		Domain:      wt.Domain,
		Instruction: wt.Instruction,
		Criteria: SuccessCriteria{
			OptimalSteps: wt.OptimalSteps,
			MaxSteps:     wt.MaxSteps,
		},
	}
	if def.TaskID == "" {
		return def, fmt.Errorf("task_id is required")
	}
	if def.Instruction == "" {
		return def, fmt.Errorf("task %s: instruction is required", def.TaskID)
	}
	if def.Criteria.MaxSteps < def.Criteria.OptimalSteps {
		return def, fmt.Errorf("task %s: max_steps %d is below optimal_steps %d",
			def.TaskID, def.Criteria.MaxSteps, def.Criteria.OptimalSteps)
	}

	for i, raw := range wt.ExpectedActions {
		var action expectedAction
		if err := mapstructure.Decode(raw, &action); err != nil {
			return def, fmt.Errorf("task %s: expected_actions[%d]: %w", def.TaskID, i, err)
		}
		if action.Tool == "" {
			return def, fmt.Errorf("task %s: expected_actions[%d]: tool is required", def.TaskID, i)
		}

		exp := ToolExpectation{ToolName: action.Tool}
		for j, rawCheck := range action.RequiredArgs {
			var params argumentCheckParams
			if err := mapstructure.Decode(rawCheck, &params); err != nil {
				return def, fmt.Errorf("task %s: %s required_args[%d]: %w", def.TaskID, action.Tool, j, err)
			}
			validator, err := ParseValidator(params.Validator)
			if err != nil {
				return def, fmt.Errorf("task %s: %s required_args[%d]: %w", def.TaskID, action.Tool, j, err)
			}
			if params.Field == "" {
				return def, fmt.Errorf("task %s: %s required_args[%d]: field is required", def.TaskID, action.Tool, j)
			}
			if validator.needsValue() && params.Value == nil {
				return def, fmt.Errorf("task %s: %s required_args[%d]: validator %q requires a value",
					def.TaskID, action.Tool, j, validator)
			}
			exp.RequiredArgs = append(exp.RequiredArgs, ArgumentCheck{
				Field:     params.Field,
				Validator: validator,
				Value:     params.Value,
			})
		}
		def.Criteria.RequiredTools = append(def.Criteria.RequiredTools, exp)
	}

	return def, nil
}

// Select returns the definitions at the given indices, in the given order.
// Out-of-range indices are an error, mirroring the strictness of loading.
func Select(defs []Definition, indices []int) ([]Definition, error) {
	if len(indices) == 0 {
		return defs, nil
	}
	var out []Definition
	for _, idx := range indices {
		if idx < 0 || idx >= len(defs) {
			return nil, fmt.Errorf("task index %d out of range (have %d tasks)", idx, len(defs))
		}
		out = append(out, defs[idx])
	}
	return out, nil
}
