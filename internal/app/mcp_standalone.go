package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpserver "inkquiry/internal/mcp"
	"inkquiry/internal/service"
)

// ServeMCP runs the app as a standalone MCP server on stdin/stdout with no GUI.
// The canvas is sized from the configuration since no view reports a size.
func ServeMCP(cfg Config) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emitter := service.NopEmitter{}
	c, err := newCore(ctx, cfg, emitter)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer c.close()

	if err := c.surface.Resize(cfg.CanvasWidth, cfg.CanvasHeight); err != nil {
		log.Fatalf("Failed to size canvas: %v", err)
	}
	c.start(ctx)

	mcpSrv := mcpserver.New(mcpserver.Deps{
		Emitter:  emitter,
		Surface:  c.surface,
		Tools:    c.tools,
		Notebook: c.notebook,
		Sync:     c.sync,
		Calc:     c.calc,
	})

	log.Println("[MCP] Starting standalone stdio server...")
	if err := mcpSrv.ServeStdio(); err != nil {
		log.Printf("MCP server error: %v", err)
	}
	c.saveTools()
}
