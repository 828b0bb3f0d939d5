// Package capability holds the MCP plumbing shared by the capability
// servers: tool registration from the registry, argument validation, and the
// JSON result and error envelopes that cross the tools/call boundary.
package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/internal/version"
)

// HandlerFunc implements one tool. args have already been validated and
// normalized against the tool's descriptor. The returned value is encoded
// as a JSON object.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// NewServer creates an MCP server announcing the given capability name.
func NewServer(name registry.Server) *server.MCPServer {
	return server.NewMCPServer(
		fmt.Sprintf("%s-%s", version.Name, name),
		version.Get(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
}

// Register adds every tool the registry assigns to name, each backed by its
// entry in handlers. A registry tool without a handler, or a handler for a
// tool the registry does not assign to name, is a wiring error.
func Register(s *server.MCPServer, reg *registry.Registry, name registry.Server, handlers map[string]HandlerFunc, logger zerolog.Logger) error {
	descriptors := reg.ForServer(name)
	assigned := make(map[string]bool, len(descriptors))

	for _, d := range descriptors {
		h, ok := handlers[d.Name]
		if !ok {
			return fmt.Errorf("%s server has no handler for tool %q", name, d.Name)
		}
		assigned[d.Name] = true
		s.AddTool(d.MCPTool(), wrap(reg, d.Name, h, logger))
	}

	for toolName := range handlers {
		if !assigned[toolName] {
			return fmt.Errorf("%s server has a handler for unregistered tool %q", name, toolName)
		}
	}
	return nil
}

func wrap(reg *registry.Registry, name string, h HandlerFunc, logger zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		args, err := reg.Validate(name, req.GetArguments())
		if err != nil {
			logger.Debug().Str("tool", name).Err(err).Msg("rejected arguments")
			return Failure(err), nil
		}

		result, err := h(ctx, args)
		if err != nil {
			logger.Warn().
				Str("tool", name).
				Str("kind", string(toolerr.KindOf(err))).
				Dur("duration", time.Since(start)).
				Err(err).
				Msg("tool failed")
			return Failure(err), nil
		}

		logger.Debug().Str("tool", name).Dur("duration", time.Since(start)).Msg("tool succeeded")
		return Success(result)
	}
}

// Success encodes v as the text content of a tool result.
func Success(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// Failure encodes err as an error tool result carrying its kind and field.
func Failure(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: toolerr.Marshal(err),
			},
		},
	}
}

// Decode turns a tool result back into a payload or a classified error.
// Numbers are kept as json.Number so integer IDs survive intact.
func Decode(res *mcp.CallToolResult) (map[string]any, error) {
	if res == nil {
		return nil, toolerr.New(toolerr.CapabilityUnavailable, "empty tool result")
	}

	text := resultText(res)
	if res.IsError {
		return nil, toolerr.Parse(text)
	}

	payload := map[string]any{}
	if text == "" {
		return payload, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, "malformed tool result")
	}
	return payload, nil
}

func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
