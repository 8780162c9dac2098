package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResultTools() {
	s.mcp.AddTool(mcp.NewTool("submit_canvas",
		mcp.WithDescription("Send the active page's drawing to the recognition service and append the answers to the page"),
	), s.handleSubmitCanvas)

	s.mcp.AddTool(mcp.NewTool("list_results",
		mcp.WithDescription("List the expression/answer pairs of a page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
	), s.handleListResults)

	s.mcp.AddTool(mcp.NewTool("clear_results",
		mcp.WithDescription("Clear the results of the active page. Variables are kept."),
	), s.handleClearResults)

	s.mcp.AddTool(mcp.NewTool("list_variables",
		mcp.WithDescription("List the variables assigned so far in this session"),
	), s.handleListVariables)
}

func (s *Server) handleSubmitCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sub, err := s.calc.Submit(ctx)
	if err != nil {
		return nil, fmt.Errorf("submit canvas: %w", err)
	}
	return jsonResult(sub)
}

func (s *Server) handleListResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return jsonResult(s.notebook.Results())
	}
	page, err := s.notebook.Page(pageID)
	if err != nil {
		return nil, err
	}
	return jsonResult(page.Results)
}

func (s *Server) handleClearResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.notebook.ClearResults(ctx)
	return textResult("Results cleared"), nil
}

func (s *Server) handleListVariables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.notebook.Variables())
}
