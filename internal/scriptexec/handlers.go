package scriptexec

import "encoding/json"

// Resource is one entry in the `resources/list` brokered response.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mime_type"`
}

// Handlers is the bundle of callbacks the Runtime Facade installs to
// resolve brokered requests. Each field may be nil, meaning the host did not
// advertise that capability; a nil handler always yields the
// "<feature> not supported" error, never a fabricated value.
type Handlers struct {
	Log                   func(level, message string)
	Progress              func(current, total float64, message string)
	MemoryGet             func(tool, key string) (interface{}, bool, error)
	MemorySet             func(tool, key string, value interface{}, ttlSecs int) error
	MemoryList            func(tool string) ([]string, error)
	MemoryDelete          func(tool, key string) (bool, error)
	ResourcesList         func() ([]Resource, error)
	ResourcesRead         func(uri string) (mimeType, text string, err error)
	ElicitationCreate     func(params json.RawMessage) (action string, content interface{}, err error)
	SamplingCreateMessage func(params json.RawMessage) (result interface{}, err error)
	ToolsCall             func(name string, args interface{}) (interface{}, error)
}
