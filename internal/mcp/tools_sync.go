package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"inkquiry/internal/service"
)

func (s *Server) registerSyncTools() {
	s.mcp.AddTool(mcp.NewTool("save_page",
		mcp.WithDescription("Save the active page (canvas and results)"),
	), s.handleSavePage)

	s.mcp.AddTool(mcp.NewTool("load_pages",
		mcp.WithDescription("Replace the notebook with the saved pages. Keeps the current notebook if nothing is saved."),
	), s.handleLoadPages)
}

func (s *Server) handleSavePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.sync == nil {
		return nil, service.ErrSyncUnavailable
	}
	page, err := s.sync.SaveCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Saved page %q (%s)", page.Name, page.ID)), nil
}

func (s *Server) handleLoadPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.sync == nil {
		return nil, service.ErrSyncUnavailable
	}
	n, err := s.sync.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return textResult("No saved pages; notebook unchanged"), nil
	}
	return jsonResult(s.notebook.State())
}
