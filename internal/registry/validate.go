package registry

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// ValidationError describes one failed field check.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult aggregates every check run against a manifest.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

var (
	// namePattern matches the allowed tool name charset: "[A-Za-z0-9_-]{1,64}".
	namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	// versionPattern matches a MAJOR.MINOR.PATCH semver triple.
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

	validToolTypes = map[ToolType]bool{
		ToolWasm: true, ToolScript: true, ToolPipeline: true,
	}
)

// Validate checks a manifest against invariants that are checkable
// independent of the filesystem (directory-name match and payload
// existence are checked by the Registry itself, which knows the
// directory it loaded the manifest from).
func Validate(m Manifest) ValidationResult {
	var errs []ValidationError

	if m.Name == "" {
		errs = append(errs, ValidationError{"name", "must not be empty"})
	} else if !namePattern.MatchString(m.Name) {
		errs = append(errs, ValidationError{"name", "must match [A-Za-z0-9_-]{1,64}"})
	}

	if m.Version != "" && !versionPattern.MatchString(m.Version) {
		errs = append(errs, ValidationError{"version", "must be a MAJOR.MINOR.PATCH semver triple"})
	}

	if !validToolTypes[m.ToolType] {
		errs = append(errs, ValidationError{"tool_type", "must be one of wasm, script, pipeline"})
	}

	switch m.ToolType {
	case ToolScript:
		if m.EntryFile == "" {
			errs = append(errs, ValidationError{"entry_file", "required for script tools"})
		}
	case ToolPipeline:
		if len(m.PipelineSteps) == 0 {
			errs = append(errs, ValidationError{"pipeline_steps", "pipeline tools must declare at least one step"})
		}
		seen := make(map[string]bool)
		for i, step := range m.PipelineSteps {
			if step.Tool == "" {
				errs = append(errs, ValidationError{fmt.Sprintf("pipeline_steps[%d].tool", i), "required"})
			}
			if step.Name != "" {
				if seen[step.Name] {
					errs = append(errs, ValidationError{fmt.Sprintf("pipeline_steps[%d].name", i), "duplicate step name"})
				}
				seen[step.Name] = true
			}
		}
	}

	if len(m.InputSchema) > 0 && !json.Valid(m.InputSchema) {
		errs = append(errs, ValidationError{"input_schema", "must be valid JSON"})
	}
	if len(m.OutputSchema) > 0 && !json.Valid(m.OutputSchema) {
		errs = append(errs, ValidationError{"output_schema", "must be valid JSON"})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
