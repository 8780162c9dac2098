package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPageTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the notebook pages and which one is active"),
	), s.handleListPages)

	// ── add_page ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_page",
		mcp.WithDescription("Add a new blank page and make it active. Fails when the page limit is reached."),
	), s.handleAddPage)

	// ── select_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("select_page",
		mcp.WithDescription("Switch to another page. The current canvas is kept with its page."),
		mcp.WithString("pageId",
			mcp.Description("ID of the page to activate"),
			mcp.Required(),
		),
	), s.handleSelectPage)

	// ── rename_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("rename_page",
		mcp.WithDescription("Rename a page"),
		mcp.WithString("pageId", mcp.Description("Page ID (optional, defaults to active page)")),
		mcp.WithString("name",
			mcp.Description("New, non-empty name"),
			mcp.Required(),
		),
	), s.handleRenamePage)

	// ── delete_page ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_page",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a page, also from the server if it was saved. The last page cannot be deleted."),
		mcp.WithString("pageId",
			mcp.Description("ID of the page to delete"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeletePage)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.notebook.State())
}

func (s *Server) handleAddPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := s.notebook.AddPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("add page: %w", err)
	}
	return jsonResult(page)
}

func (s *Server) handleSelectPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	results, restore, err := s.notebook.SelectPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	waitRestore(ctx, restore)
	return jsonResult(map[string]any{
		"activePageId": pageID,
		"results":      results,
	})
}

func (s *Server) handleRenamePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		pageID = s.notebook.ActivePageID()
	}
	if err := s.notebook.RenamePage(ctx, pageID, req.GetString("name", "")); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Renamed page %s", pageID)), nil
}

func (s *Server) handleDeletePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID := req.GetString("pageId", "")
	if pageID == "" {
		return nil, fmt.Errorf("pageId is required")
	}
	restore, err := s.notebook.DeletePage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	waitRestore(ctx, restore)
	return textResult(fmt.Sprintf("Deleted page %s; active page is %s", pageID, s.notebook.ActivePageID())), nil
}
