package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("solve_expression",
		mcp.WithPromptDescription("Write an expression on a fresh page and have it evaluated"),
		mcp.WithArgument("expression",
			mcp.ArgumentDescription("The expression to write, e.g. 3x+2=11"),
			mcp.RequiredArgument(),
		),
	), s.handleSolveExpressionPrompt)
}

func (s *Server) handleSolveExpressionPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	expr := req.Params.Arguments["expression"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Solve %s by hand", expr),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Write "%s" on the notebook canvas and evaluate it. Follow these steps:

1. Use add_page for a clean page (or reset_canvas if the page limit is reached)
2. Use set_tool to pick the pen with a dark colour and a width around 6
3. Draw each symbol with draw_stroke, one call per continuous stroke, large and left to right
4. Check the drawing with export_snapshot
5. Call submit_canvas and report the answers; list_variables shows any assignments

Keep the strokes inside the canvas and leave space between symbols.`, expr),
				},
			},
		},
	}, nil
}
