package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"inkquiry/internal/canvas"
	"inkquiry/internal/service"
)

// Server is the MCP server for inkquiry.
// It exposes the notebook, the canvas and the calculator to AI agents.
type Server struct {
	mcp     *server.MCPServer
	emitter service.EventEmitter

	surface  *canvas.Surface
	tools    *canvas.ToolState
	notebook *service.NotebookService
	sync     *service.SyncService
	calc     *service.CalculateService
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter  service.EventEmitter
	Surface  *canvas.Surface
	Tools    *canvas.ToolState
	Notebook *service.NotebookService
	Sync     *service.SyncService // optional
	Calc     *service.CalculateService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.NopEmitter{}
	}
	s := &Server{
		emitter:  emitter,
		surface:  deps.Surface,
		tools:    deps.Tools,
		notebook: deps.Notebook,
		sync:     deps.Sync,
		calc:     deps.Calc,
	}

	s.mcp = server.NewMCPServer(
		"inkquiry-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerPageTools()
	s.registerCanvasTools()
	s.registerResultTools()
	s.registerSyncTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// waitRestore blocks until an activated page has been drawn, so the next
// tool call sees the page's canvas.
func waitRestore(ctx context.Context, r *service.Restore) {
	if r == nil {
		return
	}
	if err := r.Wait(ctx); err != nil {
		log.Printf("[MCP] restore page %s: %v", r.PageID(), err)
	}
}

func boolPtr(b bool) *bool { return &b }
