package api

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/taskflow/internal/registry"
)

// ToolDefinitions converts every registry descriptor to a Claude tool schema,
// in registry order.
func ToolDefinitions(reg *registry.Registry) []anthropic.ToolUnionParam {
	descriptors := reg.List()
	tools := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: d.InputSchema(),
					Required:   d.Required(),
				},
			},
		})
	}
	return tools
}
