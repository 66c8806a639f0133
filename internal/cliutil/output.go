// Package cliutil renders tool lists, call results, and errors for the
// skillz-cli command surface: format-switched rendering, tablewriter for
// tabular output, fatih/color for text-mode coloring, and a classifier
// that maps skillzerr.Kind to a user-facing hint.
package cliutil

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Algiras/skillz/internal/registry"
	"github.com/Algiras/skillz/internal/skillzerr"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Format is the output rendering mode. No markdown mode: the runtime has
// no markdown-rendered result type, only a JSON value.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatRaw  Format = "raw"
)

// Formatter renders call results, tool listings, and errors consistently
// across the CLI's commands.
type Formatter struct {
	format Format
	color  bool
}

func NewFormatter(format Format, useColor bool) *Formatter {
	return &Formatter{format: format, color: useColor}
}

// FormatResult renders a tool call's result value.
func (f *Formatter) FormatResult(value interface{}) string {
	switch f.format {
	case FormatJSON:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(data)
	case FormatRaw:
		if s, ok := value.(string); ok {
			return s
		}
		data, _ := json.Marshal(value)
		return string(data)
	default:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(data)
	}
}

// FormatError renders a skillzerr.Error with the hint matching its kind.
func (f *Formatter) FormatError(err error) string {
	kind, message, hint := classify(err)

	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(map[string]string{
			"kind": string(kind), "message": message, "hint": hint,
		}, "", "  ")
		return string(data)
	}

	var msg string
	if f.color {
		msg = color.RedString("Error [%s]: %s", kind, message)
		if hint != "" {
			msg += "\n" + color.YellowString("Hint: %s", hint)
		}
	} else {
		msg = fmt.Sprintf("Error [%s]: %s", kind, message)
		if hint != "" {
			msg += "\nHint: " + hint
		}
	}
	return msg
}

// FormatTools renders a tool listing as a table (or JSON).
func (f *Formatter) FormatTools(records []*registry.Record) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(records, "", "  ")
		return string(data)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Name", "Type", "Version", "Description"}),
	)
	for _, rec := range records {
		table.Append([]string{
			rec.Manifest.Name,
			string(rec.Manifest.ToolType),
			rec.Manifest.Version,
			rec.Manifest.Description,
		})
	}
	table.Render()
	return ""
}

// classify maps a skillzerr.Error's kind onto a human hint, keyed on the
// structured Kind instead of substring-sniffing an error's message.
func classify(err error) (kind skillzerr.Kind, message, hint string) {
	se, ok := err.(*skillzerr.Error)
	if !ok {
		return "unknown", err.Error(), ""
	}

	message = se.Error()
	switch se.Kind {
	case skillzerr.NotFound:
		hint = "Check the tool name with 'skillz-cli list'."
	case skillzerr.AlreadyExists:
		hint = "Pass --update to overwrite an existing tool."
	case skillzerr.ValidationFailed:
		hint = "Check the tool manifest against the required fields."
	case skillzerr.Timeout:
		hint = "The tool exceeded its deadline; increase it in the config or check for a hang."
	case skillzerr.SandboxUnavailable:
		hint = "The configured sandbox binary is not installed; install it or set sandbox: none."
	case skillzerr.NonZeroExit, skillzerr.WasmTrap, skillzerr.HandlerError:
		hint = "Check the runtime log with 'skillz-cli logs'."
	case skillzerr.SpawnFailed:
		hint = "The tool's interpreter or entry file could not be started; check it exists and is executable."
	}
	return se.Kind, message, hint
}
