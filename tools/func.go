package tools

// FuncOption configures a function-backed tool.
type FuncOption func(*funcTool)

// WithResponseType overrides the default text response type.
func WithResponseType(t ResponseType) FuncOption {
	return func(ft *funcTool) { ft.responseType = t }
}

// WithInputSchema sets the tool's input schema JSON. The default is an
// object schema with no properties.
func WithInputSchema(schemaJSON string) FuncOption {
	return func(ft *funcTool) { ft.inputSchema = schemaJSON }
}

// WithResultFileName sets a dynamic artifact name for embedded-resource
// responses. The default is "<name>.md".
func WithResultFileName(fn func(params map[string]string) string) FuncOption {
	return func(ft *funcTool) { ft.resultFileName = fn }
}

// NewFunc builds a Tool from a plain function. It covers tools that need no
// state of their own; anything richer should implement Tool directly.
func NewFunc(name, description string, fn func(params map[string]string) (string, error), opts ...FuncOption) Tool {
	ft := &funcTool{
		name:         name,
		description:  description,
		inputSchema:  `{"type":"object","properties":{},"required":[]}`,
		responseType: ResponseText,
		fn:           fn,
	}
	for _, opt := range opts {
		opt(ft)
	}
	return ft
}

type funcTool struct {
	name           string
	description    string
	inputSchema    string
	responseType   ResponseType
	fn             func(params map[string]string) (string, error)
	resultFileName func(params map[string]string) string
}

func (ft *funcTool) Name() string               { return ft.name }
func (ft *funcTool) Description() string        { return ft.description }
func (ft *funcTool) InputSchema() string        { return ft.inputSchema }
func (ft *funcTool) ResponseType() ResponseType { return ft.responseType }

func (ft *funcTool) Execute(params map[string]string) (string, error) {
	return ft.fn(params)
}

func (ft *funcTool) ResultFileName(params map[string]string) string {
	if ft.resultFileName != nil {
		return ft.resultFileName(params)
	}
	return ft.name + ".md"
}
