package readtool

import (
	"context"
	"fmt"
	"math"

	"github.com/atinylittleshell/pageread/internal/truncate"
)

const ToolName = "read"

// Tool exposes a Reader as an agent tool taking {path, offset?, limit?}.
type Tool struct {
	reader *Reader
}

// NewTool wraps reader as an agent tool.
func NewTool(reader *Reader) *Tool {
	return &Tool{reader: reader}
}

// Name returns the tool name agents call it by.
func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return fmt.Sprintf("Read the contents of a file. Supports text files only. "+
		"Output is truncated to %d lines or %s (whichever is hit first). "+
		"Use offset/limit for large files. "+
		"When you need the full file, continue with offset until complete.",
		t.reader.MaxLines(), truncate.FormatSize(t.reader.MaxBytes()))
}

// Parameters returns the JSON schema of the tool arguments.
func (t *Tool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file to read (relative or absolute)",
			},
			"offset": map[string]interface{}{
				"type":        "integer",
				"description": "Line number to start reading from (1-indexed)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of lines to read",
				"minimum":     1,
			},
		},
		"required": []string{"path"},
	}
}

// Execute runs the tool with decoded JSON arguments.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (*Outcome, error) {
	path, ok := args["path"].(string)
	if !ok {
		return nil, &Error{
			Kind: KindInvalidRequest,
			Err:  fmt.Errorf("%w: read tool requires 'path' argument as string", ErrInvalidRequest),
		}
	}

	req := Request{Path: path}
	var err error
	if req.Offset, err = intArg(args, "offset"); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Path: path, Err: err}
	}
	if req.Limit, err = intArg(args, "limit"); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Path: path, Err: err}
	}

	return t.reader.Read(ctx, req)
}

func intArg(args map[string]interface{}, name string) (*int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}

	var value int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: '%s' must be an integer, got %v", ErrInvalidRequest, name, v)
		}
		if v < math.MinInt || v >= -math.MinInt {
			return nil, fmt.Errorf("%w: '%s' is out of range, got %v", ErrInvalidRequest, name, v)
		}
		value = int(v)
	case int:
		value = v
	case int64:
		value = int(v)
	default:
		return nil, fmt.Errorf("%w: '%s' must be an integer, got %T", ErrInvalidRequest, name, raw)
	}
	return &value, nil
}
