package pipeline

import (
	"encoding/json"
	"time"

	"github.com/Algiras/skillz/internal/skillzerr"
)

// Step is one entry of a pipeline tool's step list (mirrors
// registry.PipelineStep; kept separate so this package has no dependency
// on internal/registry).
type Step struct {
	Name            string
	Tool            string
	Args            json.RawMessage
	ContinueOnError bool
	Condition       string
}

// StepResult records the outcome of one executed step.
type StepResult struct {
	StepIndex  int         `json:"step_index"`
	StepName   string      `json:"step_name,omitempty"`
	Tool       string      `json:"tool"`
	Success    bool        `json:"success"`
	Output     interface{} `json:"output"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	Skipped    bool        `json:"skipped,omitempty"`
}

// CallTool invokes a single tool by name with resolved arguments,
// returning its output value. Supplied by the Runtime Facade so this
// package stays free of a dependency on tool dispatch.
type CallTool func(toolName string, args interface{}) (interface{}, error)

// Run executes a pipeline's steps in order. For each step it first
// evaluates the step's condition (when present), then resolves the
// step's arguments against the pipeline input, prior step outputs (by
// name), and the immediately preceding step's output, and invokes it. A
// step whose condition evaluates false is recorded as skipped, has its
// arguments left unresolved, and does not contribute a new $prev. A
// failing step (argument resolution or the call itself) halts the
// pipeline unless its ContinueOnError is set.
func Run(steps []Step, input interface{}, call CallTool) ([]StepResult, interface{}, error) {
	results := make([]StepResult, 0, len(steps))
	stepResults := make(map[string]interface{})
	var prevOutput interface{}
	havePrev := false

	for i, step := range steps {
		if step.Condition != "" {
			ok, err := EvaluateCondition(step.Condition, input, stepResults, prevOutput, havePrev)
			if err != nil {
				return results, prevOutput, skillzerr.Wrap(skillzerr.ConditionEvalError, err, "step %d (%s) condition", i, step.Tool)
			}
			if !ok {
				results = append(results, StepResult{StepIndex: i, StepName: step.Name, Tool: step.Tool, Skipped: true})
				continue
			}
		}

		var rawArgs interface{}
		if len(step.Args) > 0 {
			if err := json.Unmarshal(step.Args, &rawArgs); err != nil {
				return results, prevOutput, skillzerr.Wrap(skillzerr.ValidationFailed, err, "step %d (%s) args", i, step.Tool)
			}
		}

		resolvedArgs, err := ResolveArgs(rawArgs, input, stepResults, prevOutput, havePrev)
		if err != nil {
			results = append(results, StepResult{StepIndex: i, StepName: step.Name, Tool: step.Tool, Error: err.Error()})
			if step.ContinueOnError {
				continue
			}
			return results, prevOutput, skillzerr.Wrap(skillzerr.VariableResolutionError, err, "step %d (%s)", i, step.Tool)
		}

		start := time.Now()
		output, callErr := call(step.Tool, resolvedArgs)
		duration := time.Since(start)

		result := StepResult{
			StepIndex:  i,
			StepName:   step.Name,
			Tool:       step.Tool,
			DurationMs: duration.Milliseconds(),
		}

		if callErr != nil {
			result.Success = false
			result.Error = callErr.Error()
			results = append(results, result)
			if step.ContinueOnError {
				continue
			}
			return results, prevOutput, skillzerr.Wrap(skillzerr.HandlerError, callErr, "step %d (%s) failed", i, step.Tool)
		}

		result.Success = true
		result.Output = output
		results = append(results, result)

		if step.Name != "" {
			stepResults[step.Name] = output
		}
		prevOutput = output
		havePrev = true
	}

	return results, prevOutput, nil
}
