package runtime

import (
	"encoding/json"
	"strings"

	"github.com/Algiras/skillz/internal/scriptexec"
	"github.com/Algiras/skillz/internal/skillzerr"
)

const (
	resourceGuideURI    = "skillz://guide"
	resourceExamplesURI = "skillz://examples"
	resourceProtocolURI = "skillz://protocol"
	toolResourcePrefix  = "skillz://tools/"
)

const guideText = `# Skillz tool guide

A tool is one manifest.json plus a payload:

- wasm    - a compiled WebAssembly module run in a WASI sandbox
- script  - an interpreter subprocess (python3, node, sh, ...) speaking
            the execute JSON-RPC protocol over stdio
- pipeline - an ordered list of steps, each naming another registered
             tool, chained with $input/$prev/$step variable references

Register a tool with the install meta-tool, call it by name with call,
list what is registered with list, and roll back to a prior version with
rollback. A pipeline step's tool must already be registered (or be a
reserved built-in) before the pipeline itself can be registered.
`

const protocolText = `# Script tool wire protocol

A script tool is spawned fresh for every call. The host writes one
line-delimited JSON-RPC 2.0 request named execute to its stdin, then
reads stdout until a JSON-RPC response carrying the same id comes back.
Between those two messages, the tool may send its own line-delimited
JSON-RPC requests the other direction (a brokered request) to ask the
host to do something on its behalf: memory/get, memory/set, memory/list,
memory/delete, resources/list, resources/read, elicitation/create,
sampling/createMessage, or tools/call (invoke another registered tool
and get its result back). The host answers each brokered request with a
JSON-RPC response before the tool's own final response is expected.
`

var examplesManifests = []json.RawMessage{
	json.RawMessage(`{
  "name": "reverse",
  "tool_type": "script",
  "description": "reverses the input string",
  "entry_file": "reverse.py",
  "interpreter": "python3"
}`),
	json.RawMessage(`{
  "name": "checksum",
  "tool_type": "wasm",
  "description": "computes a checksum of its stdin argument"
}`),
	json.RawMessage(`{
  "name": "reverse-twice",
  "tool_type": "pipeline",
  "description": "chains reverse through itself",
  "pipeline_steps": [
    {"name": "first", "tool": "reverse", "args": "$input"},
    {"name": "second", "tool": "reverse", "args": "$first"}
  ]
}`),
}

// listResources enumerates the static guide/examples/protocol resources
// plus one resource per currently registered tool.
func (f *Facade) listResources() []scriptexec.Resource {
	out := []scriptexec.Resource{
		{URI: resourceGuideURI, Name: "guide", Description: "how tools, calls, and pipelines fit together", MimeType: "text/markdown"},
		{URI: resourceExamplesURI, Name: "examples", Description: "example manifests for each tool_type", MimeType: "application/json"},
		{URI: resourceProtocolURI, Name: "protocol", Description: "the script tool JSON-RPC wire protocol", MimeType: "text/markdown"},
	}
	for _, rec := range f.Registry.List() {
		out = append(out, scriptexec.Resource{
			URI:         toolResourcePrefix + rec.Manifest.Name,
			Name:        rec.Manifest.Name,
			Description: rec.Manifest.Description,
			MimeType:    "application/json",
		})
	}
	return out
}

// readResource serves the content behind any URI listResources
// advertised: the three static documents, or a registered tool's
// manifest.
func (f *Facade) readResource(uri string) (string, string, error) {
	switch uri {
	case resourceGuideURI:
		return "text/markdown", guideText, nil
	case resourceProtocolURI:
		return "text/markdown", protocolText, nil
	case resourceExamplesURI:
		data, err := json.MarshalIndent(examplesManifests, "", "  ")
		if err != nil {
			return "", "", skillzerr.Wrap(skillzerr.StorageFailure, err, "marshal example manifests")
		}
		return "application/json", string(data), nil
	}

	if name, ok := strings.CutPrefix(uri, toolResourcePrefix); ok {
		rec, found := f.Registry.Get(name)
		if !found {
			return "", "", skillzerr.New(skillzerr.NotFound, "resource %q not found", uri)
		}
		data, err := json.MarshalIndent(rec.Manifest, "", "  ")
		if err != nil {
			return "", "", skillzerr.Wrap(skillzerr.StorageFailure, err, "marshal manifest for resource").WithTool(name)
		}
		return "application/json", string(data), nil
	}

	return "", "", skillzerr.New(skillzerr.NotFound, "resource %q not found", uri)
}
