// Package tools defines the collaborator boundary between the protocol core
// and concrete tool implementations, plus the in-process registry the
// dispatcher consults. Tool implementations are opaque to the core: they
// receive a flattened string parameter map and return a string whose
// interpretation is declared by their ResponseType.
package tools

import (
	"fmt"
	"sort"
	"sync"
)

// ResponseType classifies how a tool's string result is shaped into a
// protocol response.
type ResponseType int

const (
	// ResponseText returns the result as a plain text content block.
	ResponseText ResponseType = iota
	// ResponseJSON parses the result and returns it as structuredContent.
	ResponseJSON
	// ResponseMarkdown returns the result as an embedded text/markdown
	// resource.
	ResponseMarkdown
	// ResponseImage returns the result (base64 PNG data) as an embedded
	// blob resource.
	ResponseImage
)

// String returns the type's display name.
func (t ResponseType) String() string {
	switch t {
	case ResponseJSON:
		return "json"
	case ResponseMarkdown:
		return "markdown"
	case ResponseImage:
		return "image"
	default:
		return "text"
	}
}

// Tool is a single capability exposed to MCP clients.
//
// Execute blocks for as long as the underlying operation takes; the core
// imposes no deadline and offers no cancellation hook. Interrupting a call
// releases the HTTP response early while Execute keeps running.
type Tool interface {
	// Name is the unique identifier used in tools/call requests.
	Name() string
	// Description is the human-readable summary sent in tools/list.
	Description() string
	// InputSchema is the tool's JSON Schema as a JSON string. It is parsed
	// and re-embedded (not double-encoded) in tools/list responses.
	InputSchema() string
	// ResponseType declares the shape of Execute's result.
	ResponseType() ResponseType
	// Execute runs the tool with the flattened parameter map.
	Execute(params map[string]string) (string, error)
	// ResultFileName names the artifact for embedded-resource responses.
	ResultFileName(params map[string]string) string
}

// Registry is a name-indexed tool collection. It is safe for concurrent use;
// registration typically happens once at startup while lookups happen on
// every request.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
