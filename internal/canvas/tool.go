package canvas

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"inkquiry/internal/domain"
)

const (
	MinWidth = 1
	MaxWidth = 100
)

// Palette is the colour set offered by the toolbar.
var Palette = []string{
	"#ffffff", "#ff0000", "#ff69b4", "#ff1493",
	"#800080", "#a52a2a", "#1e90ff", "#00ced1",
	"#00ff00", "#32cd32", "#ffa500", "#ff4500",
}

// ToolState owns the tool configuration and pushes every change to the
// surface it drives.
type ToolState struct {
	mu      sync.Mutex
	cfg     domain.ToolConfig
	surface *Surface
}

// NewToolState binds cfg to surface and applies it.
func NewToolState(surface *Surface, cfg domain.ToolConfig) *ToolState {
	t := &ToolState{cfg: cfg, surface: surface}
	t.apply()
	return t
}

func (t *ToolState) Config() domain.ToolConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

func (t *ToolState) SetTool(tool domain.Tool) error {
	if tool != domain.ToolPen && tool != domain.ToolEraser {
		return fmt.Errorf("unknown tool %q", tool)
	}
	t.mu.Lock()
	t.cfg.Tool = tool
	t.mu.Unlock()
	t.apply()
	return nil
}

func (t *ToolState) SetPenWidth(w float64) {
	t.mu.Lock()
	t.cfg.PenWidth = clampWidth(w)
	t.mu.Unlock()
	t.apply()
}

func (t *ToolState) SetEraserWidth(w float64) {
	t.mu.Lock()
	t.cfg.EraserWidth = clampWidth(w)
	t.mu.Unlock()
	t.apply()
}

// SetColor accepts #rgb or #rrggbb and stores it normalized to #rrggbb.
func (t *ToolState) SetColor(hex string) error {
	c, err := ParseHexColor(hex)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.cfg.Color = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	t.mu.Unlock()
	t.apply()
	return nil
}

func (t *ToolState) apply() {
	if t.surface != nil {
		t.surface.SetTool(t.Config())
	}
}

func clampWidth(w float64) float64 {
	switch {
	case w < MinWidth:
		return MinWidth
	case w > MaxWidth:
		return MaxWidth
	}
	return w
}

// ParseHexColor parses "#rgb" or "#rrggbb" into an opaque colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
