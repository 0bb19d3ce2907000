package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
)

type (
	// MCPClient is the part of an MCP client session the tools need.
	MCPClient interface {
		CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	}

	MCPTool struct {
		server string
		tool   mcp.Tool
		schema *jsonschema.Schema
		client MCPClient
	}

	// MCPClientFactory creates MCP clients based on the server configuration
	MCPClientFactory struct {
		httpClient *http.Client
		logger     *slog.Logger
	}
)

const (
	MCPTransportStdio = "stdio"
	MCPTransportSSE   = "sse"
	MCPTransportHTTP  = "http"
)

var (
	_ Tool      = (*MCPTool)(nil)
	_ MCPClient = (*mcpclient.Client)(nil)
)

func NewMCPTool(server string, tool mcp.Tool, client MCPClient) (*MCPTool, error) {
	schema, err := makeInputSchema(tool.InputSchema)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid input schema for mcp tool %s", tool.Name)
	}
	return &MCPTool{
		server: server,
		tool:   tool,
		schema: schema,
		client: client,
	}, nil
}

func (t *MCPTool) Name() string {
	return t.tool.Name
}

func (t *MCPTool) Description() string {
	return t.tool.Description
}

func (t *MCPTool) Schema() *jsonschema.Schema {
	return t.schema
}

func (t *MCPTool) Invoke(ctx context.Context, input string) (string, error) {
	arguments := map[string]any{}
	if strings.TrimSpace(input) != "" {
		a, err := parseArgs(input)
		if err != nil {
			return "", err
		}
		arguments = a
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.tool.Name
	req.Params.Arguments = arguments

	res, err := t.client.CallTool(ctx, req)
	if err != nil {
		return "", errors.Wrapf(err, "mcp server %s", t.server)
	}

	text := toText(res.Content)
	if res.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

func makeInputSchema(schema mcp.ToolInputSchema) (*jsonschema.Schema, error) {
	var inputSchema jsonschema.Schema

	schemaJson, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	if err = json.Unmarshal(schemaJson, &inputSchema); err != nil {
		return nil, err
	}

	return &inputSchema, nil
}

func toText(contents []mcp.Content) string {
	text := ""
	for _, c := range contents {
		switch t := c.(type) {
		case mcp.TextContent:
			text += t.Text
		case *mcp.TextContent:
			text += t.Text
		}
	}

	return strings.TrimSpace(text)
}

// NewMCPClientFactory creates a new MCP client factory
func NewMCPClientFactory(logger *slog.Logger) *MCPClientFactory {
	return &MCPClientFactory{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func transportOf(conf config.MCPServerConfig) string {
	if conf.Transport != "" {
		return conf.Transport
	}
	if conf.URL != "" {
		return MCPTransportSSE
	}
	return MCPTransportStdio
}

// Connect creates, starts and initializes a client for the server.
func (f *MCPClientFactory) Connect(ctx context.Context, name string, conf config.MCPServerConfig) (*mcpclient.Client, error) {
	var (
		c   *mcpclient.Client
		err error
	)
	switch transportOf(conf) {
	case MCPTransportStdio:
		if conf.Command == "" {
			return nil, errors.New("command is required for stdio transport")
		}
		var envs []string
		for key, val := range conf.Env {
			envs = append(envs, fmt.Sprintf("%s=%s", key, val))
		}
		c, err = mcpclient.NewStdioMCPClient(conf.Command, envs, conf.Args...)
		if err == nil {
			if stderr, ok := mcpclient.GetStderr(c); ok {
				go f.forwardStderr(name, stderr)
			}
		}
	case MCPTransportSSE:
		if conf.URL == "" {
			return nil, errors.New("URL is required for SSE transport")
		}
		opts := []transport.ClientOption{
			transport.WithHTTPClient(f.httpClient),
		}
		if len(conf.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(conf.Headers))
		}
		c, err = mcpclient.NewSSEMCPClient(conf.URL, opts...)
		if err == nil {
			err = c.Start(ctx)
		}
	case MCPTransportHTTP:
		if conf.URL == "" {
			return nil, errors.New("URL is required for streamable transport")
		}
		c, err = mcpclient.NewStreamableHttpClient(conf.URL, transport.WithHTTPHeaders(conf.Headers))
		if err == nil {
			err = c.Start(ctx)
		}
	default:
		return nil, errors.Errorf("unsupported transport type: %s", conf.Transport)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start MCP client %s", name)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "supportagent",
		Version: "0.1.0",
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "failed to initialize MCP client %s", name)
	}

	return c, nil
}

func (f *MCPClientFactory) forwardStderr(name string, stderr io.Reader) {
	rd := bufio.NewReader(stderr)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			if err == io.EOF || strings.Contains(err.Error(), "already closed") {
				return
			}
			f.logger.Error("failed to copy stderr", "error", err, "server", name)
			return
		}
		f.logger.Warn("[MCP] "+strings.TrimSpace(line), "server", name)
	}
}

// LoadMCPTools connects to every configured server and wraps its tools.
// The returned close func shuts the clients down.
func LoadMCPTools(ctx context.Context, factory *MCPClientFactory, servers map[string]config.MCPServerConfig) ([]Tool, func(), error) {
	var (
		clients []*mcpclient.Client
		tools   []Tool
	)
	closeAll := func() {
		for _, c := range clients {
			if err := c.Close(); err != nil {
				factory.logger.Warn("failed to close mcp client", "error", err)
			}
		}
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c, err := factory.Connect(ctx, name, servers[name])
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		clients = append(clients, c)

		listToolsResult, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrapf(err, "failed to list tools of %s", name)
		}
		for _, t := range listToolsResult.Tools {
			mcpTool, err := NewMCPTool(name, t, c)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			tools = append(tools, mcpTool)
		}
		factory.logger.InfoContext(ctx, "mcp server connected", "server", name, "tools", len(listToolsResult.Tools))
	}

	return tools, closeAll, nil
}
