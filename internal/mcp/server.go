// Package mcp exposes the capability surface over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/capability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Surface is what the bridge needs from the capability registry.
type Surface interface {
	List(kind capability.Kind) []capability.Descriptor
	Invoke(ctx context.Context, kind capability.Kind, name string, raw map[string]any) (*capability.Result, error)
}

// Server bridges a capability surface onto an MCP server.
type Server struct {
	logger  *zap.Logger
	surface Surface
	server  *mcpsdk.Server
}

// NewServer registers every capability of surface with a new MCP server.
// Capabilities added to surface afterwards are not exposed.
func NewServer(logger *zap.Logger, surface Surface, name, version string) *Server {
	s := &Server{
		logger:  logger.Named("mcp"),
		surface: surface,
		server:  mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil),
	}
	for _, d := range surface.List(capability.KindTool) {
		s.addTool(d)
	}
	for _, d := range surface.List(capability.KindResource) {
		s.addResource(d)
	}
	for _, d := range surface.List(capability.KindPrompt) {
		s.addPrompt(d)
	}
	return s
}

// SDK returns the underlying MCP server.
func (s *Server) SDK() *mcpsdk.Server { return s.server }

// Run serves on t until ctx is done or the peer disconnects.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	s.logger.Info("MCP server starting.")
	err := s.server.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	s.logger.Info("MCP server stopped.")
	return nil
}

func (s *Server) addTool(d capability.Descriptor) {
	name := d.Name
	s.server.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: d.Description,
		InputSchema: d.Schema(),
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var raw map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &raw); err != nil {
				return toolError(fmt.Errorf("arguments must be a JSON object: %w", err)), nil
			}
		}
		res, err := s.surface.Invoke(ctx, capability.KindTool, name, raw)
		if err != nil {
			s.logger.Debug("Tool call failed", zap.String("tool", name), zap.Error(err))
			return toolError(err), nil
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Text()}}}, nil
	})
}

func toolError(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
	}
}

func (s *Server) addResource(d capability.Descriptor) {
	handler := func(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		uri := req.Params.URI
		res, err := s.surface.Invoke(ctx, capability.KindResource, uri, nil)
		if err != nil {
			if errors.Is(err, capability.ErrNotFound) {
				return nil, mcpsdk.ResourceNotFoundError(uri)
			}
			return nil, err
		}
		return &mcpsdk.ReadResourceResult{Contents: []*mcpsdk.ResourceContents{{
			URI:      uri,
			MIMEType: res.MIMEType,
			Text:     res.Text(),
		}}}, nil
	}

	if d.IsTemplate() {
		s.server.AddResourceTemplate(&mcpsdk.ResourceTemplate{
			Name:        d.Name,
			URITemplate: d.Name,
			Description: d.Description,
			MIMEType:    d.MIMEType,
		}, handler)
		return
	}
	s.server.AddResource(&mcpsdk.Resource{
		Name:        d.Name,
		URI:         d.Name,
		Description: d.Description,
		MIMEType:    d.MIMEType,
	}, handler)
}

func (s *Server) addPrompt(d capability.Descriptor) {
	name := d.Name
	params := d.Params
	args := make([]*mcpsdk.PromptArgument, 0, len(params))
	for _, p := range params {
		args = append(args, &mcpsdk.PromptArgument{Name: p.Name, Description: p.Description, Required: p.Required})
	}

	s.server.AddPrompt(&mcpsdk.Prompt{
		Name:        name,
		Description: d.Description,
		Arguments:   args,
	}, func(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
		raw, err := promptArguments(params, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		res, err := s.surface.Invoke(ctx, capability.KindPrompt, name, raw)
		if err != nil {
			return nil, err
		}
		return &mcpsdk.GetPromptResult{
			Description: d.Description,
			Messages: []*mcpsdk.PromptMessage{{
				Role:    "user",
				Content: &mcpsdk.TextContent{Text: res.Text()},
			}},
		}, nil
	})
}

// promptArguments converts MCP's string-only prompt arguments to the types
// the capability declares.
func promptArguments(params []capability.Param, in map[string]string) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	types := make(map[string]capability.ParamType, len(params))
	for _, p := range params {
		types[p.Name] = p.Type
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch types[k] {
		case capability.TypeInteger:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q: expected integer, got %q", k, v)
			}
			out[k] = n
		case capability.TypeNumber:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q: expected number, got %q", k, v)
			}
			out[k] = f
		case capability.TypeBoolean:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("argument %q: expected boolean, got %q", k, v)
			}
			out[k] = b
		default:
			out[k] = v
		}
	}
	return out, nil
}
