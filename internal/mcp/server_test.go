package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
	"inkquiry/internal/service"
)

type stubCalculator struct {
	evals []domain.Evaluation
	vars  domain.Variables
}

func (c *stubCalculator) Calculate(_ context.Context, _ domain.Snapshot, vars domain.Variables) ([]domain.Evaluation, error) {
	c.vars = vars
	return c.evals, nil
}

type stubStore struct {
	pages []domain.Page
}

func (s *stubStore) ListPages(context.Context) ([]domain.Page, error) { return s.pages, nil }
func (s *stubStore) CreatePage(_ context.Context, p *domain.Page) error {
	s.pages = append(s.pages, p.Clone())
	return nil
}
func (s *stubStore) UpdatePage(_ context.Context, p *domain.Page) error {
	for i := range s.pages {
		if s.pages[i].ID == p.ID {
			s.pages[i] = p.Clone()
			return nil
		}
	}
	return errors.New("not found")
}
func (s *stubStore) DeletePage(context.Context, string) error { return nil }

type fixture struct {
	srv   *Server
	calc  *stubCalculator
	store *stubStore
	em    *service.MockEmitter
}

func newFixture(t *testing.T, withSync bool) *fixture {
	t.Helper()
	surface := canvas.New()
	if err := surface.Resize(64, 64); err != nil {
		t.Fatalf("resize: %v", err)
	}
	em := &service.MockEmitter{}
	nb := service.NewNotebookService(surface, 3, em)
	calc := &stubCalculator{}
	f := &fixture{calc: calc, em: em}
	deps := Deps{
		Emitter:  em,
		Surface:  surface,
		Tools:    canvas.NewToolState(surface, domain.DefaultToolConfig()),
		Notebook: nb,
		Calc:     service.NewCalculateService(calc, nb, surface, em),
	}
	if withSync {
		f.store = &stubStore{}
		deps.Sync = service.NewSyncService(f.store, nb, surface, em)
	}
	f.srv = New(deps)
	return f
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return tc.Text
}

func TestPageTools(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.srv.handleAddPage(ctx, call(nil))
	if err != nil {
		t.Fatalf("add_page: %v", err)
	}
	var added domain.Page
	if err := json.Unmarshal([]byte(resultText(t, res)), &added); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if added.Name != "Page 2" {
		t.Errorf("name = %q, want Page 2", added.Name)
	}

	if _, err := f.srv.handleRenamePage(ctx, call(map[string]any{"name": "Algebra"})); err != nil {
		t.Fatalf("rename_page: %v", err)
	}
	if got := f.srv.notebook.ActivePage().Name; got != "Algebra" {
		t.Errorf("active name = %q, want Algebra", got)
	}

	first := f.srv.notebook.Pages()[0].ID
	if _, err := f.srv.handleSelectPage(ctx, call(map[string]any{"pageId": first})); err != nil {
		t.Fatalf("select_page: %v", err)
	}
	if f.srv.notebook.ActivePageID() != first {
		t.Errorf("active = %s, want %s", f.srv.notebook.ActivePageID(), first)
	}

	if _, err := f.srv.handleDeletePage(ctx, call(map[string]any{"pageId": added.ID})); err != nil {
		t.Fatalf("delete_page: %v", err)
	}
	if n := len(f.srv.notebook.Pages()); n != 1 {
		t.Errorf("pages = %d, want 1", n)
	}

	if _, err := f.srv.handleDeletePage(ctx, call(map[string]any{"pageId": first})); !errors.Is(err, service.ErrLastPage) {
		t.Errorf("deleting last page: err = %v, want ErrLastPage", err)
	}
	if _, err := f.srv.handleSelectPage(ctx, call(nil)); err == nil {
		t.Error("select_page without pageId should fail")
	}
}

func TestDrawAndSubmit(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.calc.evals = []domain.Evaluation{
		{Expr: "x", Result: "4", Assign: true},
		{Expr: "2+2", Result: "4"},
	}

	if _, err := f.srv.handleDrawStroke(ctx, call(map[string]any{"points": "[[10,10],[40,40]]"})); err != nil {
		t.Fatalf("draw_stroke: %v", err)
	}
	if f.em.Count(service.EventCanvasChanged) == 0 {
		t.Error("draw_stroke did not emit canvas:changed")
	}
	if _, ok := f.srv.surface.InkBounds(); !ok {
		t.Fatal("no ink after draw_stroke")
	}

	if _, err := f.srv.handleSubmitCanvas(ctx, call(nil)); err != nil {
		t.Fatalf("submit_canvas: %v", err)
	}
	if got := f.srv.notebook.Results(); len(got) != 2 || got[1].Expression != "2+2" {
		t.Errorf("results = %+v", got)
	}
	if got := f.srv.notebook.Variables()["x"]; got != "4" {
		t.Errorf("x = %q, want 4", got)
	}

	res, err := f.srv.handleListVariables(ctx, call(nil))
	if err != nil {
		t.Fatalf("list_variables: %v", err)
	}
	if !strings.Contains(resultText(t, res), `"x": "4"`) {
		t.Errorf("list_variables = %s", resultText(t, res))
	}

	if _, err := f.srv.handleClearResults(ctx, call(nil)); err != nil {
		t.Fatalf("clear_results: %v", err)
	}
	if n := len(f.srv.notebook.Results()); n != 0 {
		t.Errorf("results after clear = %d", n)
	}
	if len(f.srv.notebook.Variables()) != 1 {
		t.Error("clear_results dropped variables")
	}
}

func TestDrawStrokeRejectsBadPoints(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name   string
		points string
	}{
		{"not json", "10,10"},
		{"single point", "[[1,1]]"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.srv.handleDrawStroke(context.Background(), call(map[string]any{"points": tt.points})); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSetTool(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	if _, err := f.srv.handleSetTool(ctx, call(map[string]any{"tool": "eraser", "width": float64(30)})); err != nil {
		t.Fatalf("set_tool: %v", err)
	}
	cfg := f.srv.tools.Config()
	if cfg.Tool != domain.ToolEraser || cfg.EraserWidth != 30 {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.PenWidth != domain.DefaultToolConfig().PenWidth {
		t.Errorf("pen width changed to %v", cfg.PenWidth)
	}
	if f.srv.surface.BlendMode() != canvas.BlendDestinationOut {
		t.Errorf("blend = %v, want erase", f.srv.surface.BlendMode())
	}

	if _, err := f.srv.handleSetTool(ctx, call(map[string]any{"color": "blue"})); err == nil {
		t.Error("expected error for non-hex colour")
	}
	if _, err := f.srv.handleSetTool(ctx, call(map[string]any{"tool": "brush"})); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestExportSnapshot(t *testing.T) {
	f := newFixture(t, false)
	res, err := f.srv.handleExportSnapshot(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("export_snapshot: %v", err)
	}
	img, ok := res.Content[0].(mcp.ImageContent)
	if !ok {
		t.Fatalf("content is %T, want image", res.Content[0])
	}
	if img.MIMEType != "image/png" || img.Data == "" {
		t.Errorf("image = %s, %d bytes", img.MIMEType, len(img.Data))
	}
}

func TestSyncTools(t *testing.T) {
	t.Run("unavailable without a store", func(t *testing.T) {
		f := newFixture(t, false)
		if _, err := f.srv.handleSavePage(context.Background(), call(nil)); !errors.Is(err, service.ErrSyncUnavailable) {
			t.Errorf("save_page: err = %v", err)
		}
		if _, err := f.srv.handleLoadPages(context.Background(), call(nil)); !errors.Is(err, service.ErrSyncUnavailable) {
			t.Errorf("load_pages: err = %v", err)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		f := newFixture(t, true)
		ctx := context.Background()
		if _, err := f.srv.handleSavePage(ctx, call(nil)); err != nil {
			t.Fatalf("save_page: %v", err)
		}
		if len(f.store.pages) != 1 {
			t.Fatalf("stored pages = %d, want 1", len(f.store.pages))
		}
		res, err := f.srv.handleLoadPages(ctx, call(nil))
		if err != nil {
			t.Fatalf("load_pages: %v", err)
		}
		if !strings.Contains(resultText(t, res), f.store.pages[0].ID) {
			t.Errorf("load_pages result does not list the stored page")
		}
	})
}

func TestResources(t *testing.T) {
	f := newFixture(t, false)
	contents, err := f.srv.handlePagesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("pages resource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents)
	var state domain.NotebookState
	if err := json.Unmarshal([]byte(text.Text), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(state.Pages) != 1 || state.ActivePageID == "" {
		t.Errorf("state = %+v", state)
	}
}

func TestParsePoints(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"pairs", "[[1,2],[3,4]]", 2},
		{"objects", `[{"x":1,"y":2},{"x":3,"y":4},{"x":5,"y":6}]`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, err := parsePoints(tt.in)
			if err != nil {
				t.Fatalf("parsePoints: %v", err)
			}
			if len(pts) != tt.want {
				t.Errorf("len = %d, want %d", len(pts), tt.want)
			}
		})
	}
}
