package registry

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPTool renders the definition as an MCP tool advertisement.
func (d Definition) MCPTool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(d.Description),
		mcp.WithReadOnlyHintAnnotation(d.Hints.ReadOnly),
		mcp.WithIdempotentHintAnnotation(d.Hints.Idempotent),
		mcp.WithDestructiveHintAnnotation(d.Hints.Destructive),
		mcp.WithOpenWorldHintAnnotation(d.Hints.OpenWorld),
	}

	for _, f := range d.Schema.Fields {
		props := []mcp.PropertyOption{mcp.Description(f.Description)}
		if f.Required {
			props = append(props, mcp.Required())
		}

		switch f.Type {
		case TypeString:
			opts = append(opts, mcp.WithString(f.Name, props...))
		case TypeNumber:
			opts = append(opts, mcp.WithNumber(f.Name, props...))
		case TypeInteger:
			props = append(props, func(schema map[string]any) { schema["type"] = "integer" })
			opts = append(opts, mcp.WithNumber(f.Name, props...))
		case TypeBoolean:
			opts = append(opts, mcp.WithBoolean(f.Name, props...))
		case TypeArray:
			opts = append(opts, mcp.WithArray(f.Name, props...))
		case TypeObject:
			opts = append(opts, mcp.WithObject(f.Name, props...))
		}
	}

	return mcp.NewTool(d.Name, opts...)
}
