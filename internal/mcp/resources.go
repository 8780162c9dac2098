package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── inkquiry://pages ───────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"inkquiry://pages",
		"Notebook Pages",
		mcp.WithMIMEType("application/json"),
	), s.handlePagesResource)

	// ── inkquiry://variables ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"inkquiry://variables",
		"Session Variables",
		mcp.WithMIMEType("application/json"),
	), s.handleVariablesResource)
}

func (s *Server) handlePagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource("inkquiry://pages", s.notebook.State())
}

func (s *Server) handleVariablesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource("inkquiry://variables", s.notebook.Variables())
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
