package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ShayCichocki/taskflow/internal/capability"
	"github.com/ShayCichocki/taskflow/internal/registry"
	"github.com/ShayCichocki/taskflow/internal/toolerr"
	"github.com/ShayCichocki/taskflow/internal/version"
)

// Dispatcher invokes one tool and returns its decoded result payload.
// Failures carry a toolerr kind.
type Dispatcher interface {
	Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// MCPDispatcher calls capability servers through in-process MCP clients.
type MCPDispatcher struct {
	reg     *registry.Registry
	clients map[registry.Server]*client.Client
}

// NewMCPDispatcher connects to every server and checks that each exposes
// the registry's tools for it.
func NewMCPDispatcher(ctx context.Context, reg *registry.Registry, servers map[registry.Server]*server.MCPServer) (*MCPDispatcher, error) {
	d := &MCPDispatcher{reg: reg, clients: make(map[registry.Server]*client.Client, len(servers))}

	for name, srv := range servers {
		c, err := connect(ctx, name, srv)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.clients[name] = c

		if err := d.checkTools(ctx, name, c); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func connect(ctx context.Context, name registry.Server, srv *server.MCPServer) (*client.Client, error) {
	c, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", name, err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start %s client: %w", name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: version.Name + "-orchestrator", Version: version.Get()}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize %s client: %w", name, err)
	}
	return c, nil
}

func (d *MCPDispatcher) checkTools(ctx context.Context, name registry.Server, c *client.Client) error {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("list %s tools: %w", name, err)
	}
	exposed := make(map[string]bool, len(res.Tools))
	for _, t := range res.Tools {
		exposed[t.Name] = true
	}
	for _, desc := range d.reg.ForServer(name) {
		if !exposed[desc.Name] {
			return fmt.Errorf("%s server does not expose %s", name, desc.Name)
		}
	}
	return nil
}

// Call invokes tool on the server that owns it.
func (d *MCPDispatcher) Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	desc, err := d.reg.Resolve(tool)
	if err != nil {
		return nil, err
	}
	c, ok := d.clients[desc.Server]
	if !ok {
		return nil, toolerr.New(toolerr.CapabilityUnavailable, "no %s server connected", desc.Server)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := c.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, toolerr.Timeout(ctx.Err())
		}
		return nil, toolerr.Wrap(toolerr.CapabilityUnavailable, err, fmt.Sprintf("%s server call failed", desc.Server))
	}
	return capability.Decode(res)
}

// Close closes every client.
func (d *MCPDispatcher) Close() error {
	var errs []error
	for _, c := range d.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
