package app

import (
	"context"
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
	"inkquiry/internal/service"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings and are the only
// way the view mutates application state.
type App struct {
	ctx  context.Context
	cfg  Config
	core *core
}

// New creates a new App.
func New(cfg Config) *App {
	return &App{cfg: cfg}
}

// wailsEmitter forwards service events to the frontend.
type wailsEmitter struct {
	ctx context.Context
}

func (e wailsEmitter) Emit(_ context.Context, event string, data any) {
	wailsRuntime.EventsEmit(e.ctx, event, data)
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	c, err := newCore(ctx, a.cfg, wailsEmitter{ctx: ctx})
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to start: %v", err)
		return
	}
	a.core = c

	size := c.settings.LoadWindowSize()
	wailsRuntime.WindowSetSize(ctx, size.Width, size.Height)

	wailsRuntime.LogInfof(ctx, "[app] api=%s store=%s maxPages=%d", a.cfg.APIURL, a.cfg.Store, a.cfg.MaxPages)
	c.start(ctx)
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.core == nil {
		return
	}
	w, h := wailsRuntime.WindowGetSize(ctx)
	if err := a.core.settings.SaveWindowSize(w, h); err != nil {
		wailsRuntime.LogErrorf(ctx, "save window size: %v", err)
	}
	a.core.saveTools()
	a.core.close()
}

// ============================================================
// Canvas
// ============================================================

// ResizeCanvas is called by the view with the canvas element's pixel size.
// The first call makes the canvas ready.
func (a *App) ResizeCanvas(width, height int) error {
	if err := a.core.surface.Resize(width, height); err != nil {
		return err
	}
	a.emitCanvasChanged()
	return nil
}

// PointerDown starts a stroke. If the page's drawing is still being
// restored it waits for it.
func (a *App) PointerDown(x, y float64) error {
	return a.core.notebook.PointerDown(a.ctx, x, y)
}

func (a *App) PointerMove(x, y float64) {
	a.core.surface.PointerMove(x, y)
}

func (a *App) PointerUp() {
	drawing := a.core.surface.Drawing()
	a.core.surface.PointerUp()
	if drawing {
		a.emitCanvasChanged()
	}
}

func (a *App) PointerLeave() {
	drawing := a.core.surface.Drawing()
	a.core.surface.PointerLeave()
	if drawing {
		a.emitCanvasChanged()
	}
}

// GetCanvasImage returns the current bitmap as a PNG data URL.
func (a *App) GetCanvasImage() (string, error) {
	snap, err := a.core.surface.Export()
	return string(snap), err
}

// ImportImage replaces the active page's canvas with a dropped or pasted image.
func (a *App) ImportImage(dataURL string) error {
	return a.core.notebook.ImportSnapshot(a.ctx, domain.Snapshot(dataURL))
}

// ResetCanvas clears the canvas, the active page's results and all variables.
func (a *App) ResetCanvas() {
	a.core.notebook.Reset(a.ctx)
}

func (a *App) emitCanvasChanged() {
	wailsRuntime.EventsEmit(a.ctx, service.EventCanvasChanged, map[string]string{
		"pageId": a.core.notebook.ActivePageID(),
	})
}

// ============================================================
// Tools
// ============================================================

func (a *App) GetToolConfig() domain.ToolConfig {
	return a.core.tools.Config()
}

func (a *App) GetPalette() []string {
	return append([]string(nil), canvas.Palette...)
}

func (a *App) SetTool(tool string) (domain.ToolConfig, error) {
	if err := a.core.tools.SetTool(domain.Tool(tool)); err != nil {
		return a.core.tools.Config(), err
	}
	return a.toolsChanged(), nil
}

func (a *App) SetPenWidth(width float64) domain.ToolConfig {
	a.core.tools.SetPenWidth(width)
	return a.toolsChanged()
}

func (a *App) SetEraserWidth(width float64) domain.ToolConfig {
	a.core.tools.SetEraserWidth(width)
	return a.toolsChanged()
}

func (a *App) SetColor(hex string) (domain.ToolConfig, error) {
	if err := a.core.tools.SetColor(hex); err != nil {
		return a.core.tools.Config(), fmt.Errorf("set colour: %w", err)
	}
	return a.toolsChanged(), nil
}

func (a *App) toolsChanged() domain.ToolConfig {
	a.core.saveTools()
	return a.core.tools.Config()
}
