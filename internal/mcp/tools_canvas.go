package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
	"inkquiry/internal/service"
)

func (s *Server) registerCanvasTools() {
	s.mcp.AddTool(mcp.NewTool("draw_stroke",
		mcp.WithDescription("Draw one continuous stroke on the active page with the current tool. Coordinates are canvas pixels."),
		mcp.WithString("points",
			mcp.Description("JSON array of points, e.g. [[10,10],[40,12],[70,30]]"),
			mcp.Required(),
		),
	), s.handleDrawStroke)

	s.mcp.AddTool(mcp.NewTool("set_tool",
		mcp.WithDescription("Change the drawing tool, colour or width. Omitted fields are left as they are."),
		mcp.WithString("tool", mcp.Description("pen or eraser")),
		mcp.WithString("color", mcp.Description("Pen colour hex, e.g. #1e90ff")),
		mcp.WithNumber("width", mcp.Description("Stroke width of the selected tool (1-100)")),
	), s.handleSetTool)

	s.mcp.AddTool(mcp.NewTool("reset_canvas",
		mcp.WithDescription("🛑 DESTRUCTIVE: Clear the canvas, the active page's results and all variables."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleResetCanvas)

	s.mcp.AddTool(mcp.NewTool("export_snapshot",
		mcp.WithDescription("Return the active page's canvas as a PNG image"),
	), s.handleExportSnapshot)
}

func (s *Server) handleDrawStroke(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	points, err := parsePoints(req.GetString("points", ""))
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("a stroke needs at least two points")
	}
	if err := s.surface.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("canvas not ready: %w", err)
	}

	if err := s.notebook.PointerDown(ctx, points[0][0], points[0][1]); err != nil {
		return nil, err
	}
	for _, p := range points[1:] {
		s.surface.PointerMove(p[0], p[1])
	}
	s.surface.PointerUp()

	s.emitter.Emit(ctx, service.EventCanvasChanged, map[string]string{"pageId": s.notebook.ActivePageID()})
	return textResult(fmt.Sprintf("Drew a stroke through %d points", len(points))), nil
}

func (s *Server) handleSetTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if tool := req.GetString("tool", ""); tool != "" {
		if err := s.tools.SetTool(domain.Tool(strings.ToLower(tool))); err != nil {
			return nil, err
		}
	}
	if color := req.GetString("color", ""); color != "" {
		if err := s.tools.SetColor(color); err != nil {
			return nil, err
		}
	}
	if width, ok := numberArg(req.GetArguments(), "width"); ok {
		if s.tools.Config().Tool == domain.ToolEraser {
			s.tools.SetEraserWidth(width)
		} else {
			s.tools.SetPenWidth(width)
		}
	}
	return jsonResult(s.tools.Config())
}

func (s *Server) handleResetCanvas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.notebook.Reset(ctx)
	return textResult("Canvas, results and variables cleared"), nil
}

func (s *Server) handleExportSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, snap, err := s.notebook.ExportActive()
	if err != nil {
		return nil, err
	}
	if err := canvas.ValidateSnapshot(snap); err != nil {
		return nil, err
	}
	_, payload, _ := strings.Cut(string(snap), ",")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.ImageContent{Type: "image", Data: payload, MIMEType: "image/png"},
		},
	}, nil
}
