package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// decode converts tool arguments into T by round-tripping through JSON, so
// field types are checked by encoding/json rather than type assertions.
// Unknown argument names are rejected to surface typos.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T

	args := req.GetArguments()
	if len(args) == 0 {
		return result, nil
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("invalid arguments: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("invalid arguments: %w", err)
	}
	return result, nil
}
