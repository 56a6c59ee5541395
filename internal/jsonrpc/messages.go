package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Request represents a JSON-RPC request (with an id) or notification
// (without one). Params are kept raw; method handlers decode what they need.
//
// An absent id and an explicit null id are distinct: absent means
// notification, while "id": null identifies a (discouraged but legal)
// request whose response must echo null. ID is nil only when the key was
// absent; an explicit null decodes to a non-nil null RequestID.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// UnmarshalJSON decodes the envelope and preserves the absent-vs-null id
// distinction, which plain struct decoding collapses (both leave a nil
// pointer).
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Request(p)

	if r.ID == nil {
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(data, &probe); err == nil && string(probe.ID) == "null" {
			r.ID = NewRequestID(nil)
		}
	}
	return nil
}

// IsNotification reports whether the request carries no id key and
// therefore expects no response. A request with an explicit null id is not
// a notification.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// callParams is the params shape of a tools/call request.
type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolName extracts params.name from a tools/call request, or "" when the
// params are absent or malformed.
func (r *Request) ToolName() string {
	var p callParams
	if len(r.Params) == 0 || json.Unmarshal(r.Params, &p) != nil {
		return ""
	}
	return p.Name
}

// Arguments extracts the raw params.arguments object from a tools/call
// request, or nil when absent or malformed.
func (r *Request) Arguments() json.RawMessage {
	var p callParams
	if len(r.Params) == 0 || json.Unmarshal(r.Params, &p) != nil {
		return nil
	}
	return p.Arguments
}

// Response represents a JSON-RPC response. Exactly one of Result or Error is
// set. The id field is always emitted, as JSON null when the request id
// could not be recovered.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

// ParseRequest decodes a JSON-RPC request envelope. It fails softly: a
// malformed body yields an error, never a panic, and the caller is expected
// to recover whatever id it can for the error response.
func ParseRequest(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC request: %w", err)
	}
	return &req, nil
}

// ExtractRequestID recovers the request id from a possibly malformed
// envelope. Unrecognized id types and parse failures degrade to the null id.
func ExtractRequestID(body []byte) *RequestID {
	var probe struct {
		ID *RequestID `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.ID == nil {
		return NewRequestID(nil)
	}
	return probe.ID
}

// ExtractToolName recovers params.name from a possibly malformed tools/call
// envelope. Anything unparseable yields "unknown" rather than failing the
// request.
func ExtractToolName(body []byte) string {
	var probe struct {
		Params callParams `json:"params"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Params.Name == "" {
		return "unknown"
	}
	return probe.Params.Name
}

// ExtractMethod recovers the method name from a possibly malformed
// envelope, or "" when it cannot be determined.
func ExtractMethod(body []byte) string {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Method
}

// NewResultResponse builds a successful JSON-RPC response.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// EncodeResponse serializes a response to its wire form.
func EncodeResponse(resp *Response) ([]byte, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return b, nil
}
