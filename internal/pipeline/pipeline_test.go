package pipeline_test

import (
	"testing"

	"github.com/Algiras/skillz/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVariable_InputField(t *testing.T) {
	input := map[string]interface{}{"name": "test", "count": float64(42)}
	resolved, err := pipeline.ResolveArgs("$input.name", input, map[string]interface{}{}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "test", resolved)
}

func TestResolveVariable_PrevField(t *testing.T) {
	prev := map[string]interface{}{"result": "success", "data": []interface{}{float64(1), float64(2), float64(3)}}
	resolved, err := pipeline.ResolveArgs("$prev.result", map[string]interface{}{}, map[string]interface{}{}, prev, true)
	require.NoError(t, err)
	assert.Equal(t, "success", resolved)
}

func TestResolveVariable_StepField(t *testing.T) {
	stepResults := map[string]interface{}{
		"fetch": map[string]interface{}{"url": "http://example.com"},
	}
	resolved, err := pipeline.ResolveArgs("$fetch.url", map[string]interface{}{}, stepResults, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", resolved)
}

func TestResolveVariable_PrevWithoutFieldAccessReturnsWholeOutput(t *testing.T) {
	prev := map[string]interface{}{"count": float64(5), "items": []interface{}{"a", "b", "c"}}
	resolved, err := pipeline.ResolveArgs("$prev", map[string]interface{}{}, map[string]interface{}{}, prev, true)
	require.NoError(t, err)
	out := resolved.(map[string]interface{})
	assert.Equal(t, float64(5), out["count"])
	assert.Equal(t, "a", out["items"].([]interface{})[0])
}

func TestResolveVariable_PrevMissingIsAnError(t *testing.T) {
	_, err := pipeline.ResolveArgs("$prev", map[string]interface{}{}, map[string]interface{}{}, nil, false)
	require.Error(t, err)
}

func TestResolveVariable_DeeplyNested(t *testing.T) {
	stepResults := map[string]interface{}{
		"api": map[string]interface{}{
			"response": map[string]interface{}{
				"data": map[string]interface{}{
					"users": []interface{}{
						map[string]interface{}{"name": "Alice"},
						map[string]interface{}{"name": "Bob"},
					},
				},
			},
		},
	}
	resolved, err := pipeline.ResolveArgs("$api.response.data", map[string]interface{}{}, stepResults, nil, false)
	require.NoError(t, err)
	data := resolved.(map[string]interface{})
	assert.NotNil(t, data["users"])
}

func TestResolveArgs_ObjectWithVariables(t *testing.T) {
	input := map[string]interface{}{"text": "hello world"}
	args := map[string]interface{}{
		"content": "$input.text",
		"prefix":  ">>> ",
	}
	resolved, err := pipeline.ResolveArgs(args, input, map[string]interface{}{}, nil, false)
	require.NoError(t, err)
	out := resolved.(map[string]interface{})
	assert.Equal(t, "hello world", out["content"])
	assert.Equal(t, ">>> ", out["prefix"])
}

func TestResolveArgs_NestedVariablesAcrossSources(t *testing.T) {
	input := map[string]interface{}{"config": map[string]interface{}{"timeout": float64(30)}}
	stepResults := map[string]interface{}{
		"fetch": map[string]interface{}{"body": map[string]interface{}{"message": "Hello"}, "status": float64(200)},
	}
	args := map[string]interface{}{
		"data":         "$fetch.body",
		"timeout":      "$input.config.timeout",
		"static_value": "unchanged",
	}
	resolved, err := pipeline.ResolveArgs(args, input, stepResults, nil, false)
	require.NoError(t, err)
	out := resolved.(map[string]interface{})
	assert.Equal(t, "Hello", out["data"].(map[string]interface{})["message"])
	assert.Equal(t, float64(30), out["timeout"])
	assert.Equal(t, "unchanged", out["static_value"])
}

func TestResolveArgs_ArrayWithVariables(t *testing.T) {
	input := map[string]interface{}{"items": []interface{}{"x", "y", "z"}}
	args := map[string]interface{}{
		"list":   []interface{}{"$input.items", "static"},
		"nested": []interface{}{map[string]interface{}{"val": "$input.items"}},
	}
	resolved, err := pipeline.ResolveArgs(args, input, map[string]interface{}{}, nil, false)
	require.NoError(t, err)
	out := resolved.(map[string]interface{})
	list := out["list"].([]interface{})
	assert.Equal(t, []interface{}{"x", "y", "z"}, list[0])
	assert.Equal(t, "static", list[1])
}

func TestEvaluateCondition_Equality(t *testing.T) {
	prev := map[string]interface{}{"success": true}
	ok, err := pipeline.EvaluateCondition("$prev.success == true", map[string]interface{}{}, map[string]interface{}{}, prev, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCondition_Truthy(t *testing.T) {
	prev := map[string]interface{}{"data": []interface{}{float64(1), float64(2), float64(3)}}
	ok, err := pipeline.EvaluateCondition("$prev.data", map[string]interface{}{}, map[string]interface{}{}, prev, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCondition_Inequality(t *testing.T) {
	prev := map[string]interface{}{"status": float64(404)}
	ok, err := pipeline.EvaluateCondition("$prev.status != 200", map[string]interface{}{}, map[string]interface{}{}, prev, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCondition_ObjectEqualityDoesNotPanic(t *testing.T) {
	a := map[string]interface{}{"a": map[string]interface{}{"x": float64(1)}}
	stepResults := map[string]interface{}{
		"a": map[string]interface{}{"x": float64(1)},
		"b": map[string]interface{}{"x": float64(1)},
	}
	ok, err := pipeline.EvaluateCondition("$a == $b", map[string]interface{}{}, stepResults, a, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCondition_ObjectInequalityDoesNotPanic(t *testing.T) {
	stepResults := map[string]interface{}{
		"a": map[string]interface{}{"x": float64(1)},
		"b": map[string]interface{}{"x": float64(2)},
	}
	ok, err := pipeline.EvaluateCondition("$a != $b", map[string]interface{}{}, stepResults, nil, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCondition_StringEquality(t *testing.T) {
	prev := map[string]interface{}{"status": "success"}
	ok, err := pipeline.EvaluateCondition("$prev.status == success", map[string]interface{}{}, map[string]interface{}{}, prev, true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_SequencesStepsAndThreadsPrevOutput(t *testing.T) {
	steps := []pipeline.Step{
		{Name: "fetch", Tool: "http_get", Args: []byte(`{"url": "http://example.com"}`)},
		{Name: "print", Tool: "echo", Args: []byte(`{"text": "$fetch.body"}`)},
	}

	calls := map[string]interface{}{}
	call := func(tool string, args interface{}) (interface{}, error) {
		calls[tool] = args
		switch tool {
		case "http_get":
			return map[string]interface{}{"body": "payload"}, nil
		case "echo":
			return args, nil
		}
		return nil, nil
	}

	results, final, err := pipeline.Run(steps, map[string]interface{}{}, call)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	echoArgs := final.(map[string]interface{})
	assert.Equal(t, "payload", echoArgs["text"])
}

func TestRun_SkipsStepOnFalseCondition(t *testing.T) {
	steps := []pipeline.Step{
		{Name: "check", Tool: "noop", Condition: "false"},
	}
	results, _, err := pipeline.Run(steps, map[string]interface{}{}, func(string, interface{}) (interface{}, error) {
		t.Fatal("tool should not be called when condition is false")
		return nil, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
}

func TestRun_StopsOnErrorUnlessContinueOnError(t *testing.T) {
	steps := []pipeline.Step{
		{Name: "fails", Tool: "boom"},
		{Name: "after", Tool: "noop"},
	}
	called := false
	_, _, err := pipeline.Run(steps, map[string]interface{}{}, func(tool string, args interface{}) (interface{}, error) {
		if tool == "noop" {
			called = true
		}
		if tool == "boom" {
			return nil, assert.AnError
		}
		return nil, nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
