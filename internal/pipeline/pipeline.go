// Package pipeline resolves variable references and conditions inside a
// pipeline tool's step arguments: a type switch over interface{} walks
// the variable grammar ($input.field, $prev.field, $step_name.field, bare
// $prev for the whole output) with a fixed condition-literal parsing
// precedence (bool, null, int, float, quoted-or-bare string).
package pipeline

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/Algiras/skillz/internal/skillzerr"
)

// ResolveArgs walks args, replacing any string value that is a variable
// reference ("$..."). Objects and arrays are resolved recursively; every
// other JSON value passes through unchanged.
func ResolveArgs(args interface{}, input interface{}, stepResults map[string]interface{}, prevOutput interface{}, havePrev bool) (interface{}, error) {
	switch v := args.(type) {
	case string:
		if strings.HasPrefix(v, "$") {
			return resolveVariable(v, input, stepResults, prevOutput, havePrev)
		}
		return v, nil

	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for key, value := range v {
			r, err := ResolveArgs(value, input, stepResults, prevOutput, havePrev)
			if err != nil {
				return nil, err
			}
			resolved[key] = r
		}
		return resolved, nil

	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, value := range v {
			r, err := ResolveArgs(value, input, stepResults, prevOutput, havePrev)
			if err != nil {
				return nil, err
			}
			resolved[i] = r
		}
		return resolved, nil

	default:
		return v, nil
	}
}

// resolveVariable resolves a single "$source.path.to.field" reference,
// or bare "$prev" for the whole previous step output.
func resolveVariable(varRef string, input interface{}, stepResults map[string]interface{}, prevOutput interface{}, havePrev bool) (interface{}, error) {
	name := strings.TrimPrefix(varRef, "$")

	if name == "prev" {
		if !havePrev {
			return nil, skillzerr.New(skillzerr.VariableResolutionError, "no previous step output available")
		}
		return prevOutput, nil
	}

	parts := strings.Split(name, ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, skillzerr.New(skillzerr.VariableResolutionError, "invalid variable reference: $%s", name)
	}

	source := parts[0]
	path := parts[1:]

	var current interface{}
	switch source {
	case "input":
		current = input
	case "prev":
		if !havePrev {
			return nil, skillzerr.New(skillzerr.VariableResolutionError, "no previous step output available")
		}
		current = prevOutput
	default:
		v, ok := stepResults[source]
		if !ok {
			return nil, skillzerr.New(skillzerr.VariableResolutionError, "step '%s' not found or not yet executed", source)
		}
		current = v
	}

	for _, part := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, skillzerr.New(skillzerr.VariableResolutionError, "field '%s' not found in %s", part, source)
		}
		next, ok := obj[part]
		if !ok {
			return nil, skillzerr.New(skillzerr.VariableResolutionError, "field '%s' not found in %s", part, source)
		}
		current = next
	}

	return current, nil
}

// EvaluateCondition evaluates a step's `condition` string: "$var == value",
// "$var != value", or a bare truthy check.
func EvaluateCondition(condition string, input interface{}, stepResults map[string]interface{}, prevOutput interface{}, havePrev bool) (bool, error) {
	condition = strings.TrimSpace(condition)

	if strings.Contains(condition, "==") {
		parts := strings.SplitN(condition, "==", 2)
		if len(parts) != 2 {
			return false, skillzerr.New(skillzerr.ConditionEvalError, "invalid condition: %s", condition)
		}
		left, err := resolveConditionValue(strings.TrimSpace(parts[0]), input, stepResults, prevOutput, havePrev)
		if err != nil {
			return false, err
		}
		right, err := resolveConditionValue(strings.TrimSpace(parts[1]), input, stepResults, prevOutput, havePrev)
		if err != nil {
			return false, err
		}
		return valuesEqual(left, right), nil
	}

	if strings.Contains(condition, "!=") {
		parts := strings.SplitN(condition, "!=", 2)
		if len(parts) != 2 {
			return false, skillzerr.New(skillzerr.ConditionEvalError, "invalid condition: %s", condition)
		}
		left, err := resolveConditionValue(strings.TrimSpace(parts[0]), input, stepResults, prevOutput, havePrev)
		if err != nil {
			return false, err
		}
		right, err := resolveConditionValue(strings.TrimSpace(parts[1]), input, stepResults, prevOutput, havePrev)
		if err != nil {
			return false, err
		}
		return !valuesEqual(left, right), nil
	}

	value, err := resolveConditionValue(condition, input, stepResults, prevOutput, havePrev)
	if err != nil {
		return false, err
	}
	return truthy(value), nil
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// resolveConditionValue parses one side of a condition: a variable
// reference, or a literal tried in precedence order (bool, null, int,
// float, then a string with optional surrounding quotes trimmed).
func resolveConditionValue(value string, input interface{}, stepResults map[string]interface{}, prevOutput interface{}, havePrev bool) (interface{}, error) {
	value = strings.TrimSpace(value)

	if strings.HasPrefix(value, "$") {
		return resolveVariable(value, input, stepResults, prevOutput, havePrev)
	}

	switch value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return float64(n), nil
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, nil
	}

	s := strings.Trim(value, `"`)
	s = strings.Trim(s, `'`)
	return s, nil
}

func valuesEqual(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	if !isComparable(a) || !isComparable(b) {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// isComparable reports whether v's dynamic type supports Go's == operator;
// maps and slices decoded from JSON do not, and comparing them directly
// would panic.
func isComparable(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}

func toFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
