package domain

// Tool is the active drawing tool.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// ToolConfig drives the per-stroke rendering parameters of the canvas.
// It is transient and never persisted with a page.
type ToolConfig struct {
	Tool        Tool    `json:"tool"`
	PenWidth    float64 `json:"penWidth"`
	EraserWidth float64 `json:"eraserWidth"`
	Color       string  `json:"color"`
}

// DefaultToolConfig is the configuration a fresh session starts with.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		Tool:        ToolPen,
		PenWidth:    8,
		EraserWidth: 20,
		Color:       "#000000",
	}
}

// Width returns the stroke width of the active tool.
func (c ToolConfig) Width() float64 {
	if c.Tool == ToolEraser {
		return c.EraserWidth
	}
	return c.PenWidth
}
