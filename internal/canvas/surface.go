package canvas

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"sync"

	"github.com/gogpu/gg"

	"inkquiry/internal/domain"
)

var (
	// ErrNotReady is returned before the surface has been sized for the first time.
	ErrNotReady = errors.New("canvas not ready")
	// ErrInvalidSize is returned for non-positive dimensions.
	ErrInvalidSize = errors.New("invalid canvas size")
)

// BlendMode controls how subsequent strokes combine with existing pixels.
type BlendMode int

const (
	// BlendSourceOver paints the stroke over existing content.
	BlendSourceOver BlendMode = iota
	// BlendDestinationOut removes existing content under the stroke.
	BlendDestinationOut
)

func (m BlendMode) String() string {
	if m == BlendDestinationOut {
		return "destination-out"
	}
	return "source-over"
}

type strokeStyle struct {
	width float64
	color color.NRGBA
	blend BlendMode
}

// Surface is a drawable bitmap region. Strokes are rasterized by gg into a
// coverage mask of the same size and composited into an NRGBA bitmap, which
// keeps exported PNG snapshots lossless.
//
// Surface is safe for concurrent use.
type Surface struct {
	mu         sync.Mutex
	width      int
	height     int
	bitmap     *image.NRGBA
	mask       *gg.Context
	background color.NRGBA
	style      strokeStyle

	drawing bool
	lastX   float64
	lastY   float64

	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a Surface.
type Option func(*Surface)

// WithBackground sets the colour Reset fills the bitmap with.
func WithBackground(c color.NRGBA) Option {
	return func(s *Surface) { s.background = c }
}

// New creates an unsized surface. It becomes ready on the first Resize.
func New(opts ...Option) *Surface {
	s := &Surface{
		background: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		ready:      make(chan struct{}),
	}
	s.applyToolLocked(domain.DefaultToolConfig())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready is closed once the surface has a bitmap.
func (s *Surface) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until the surface is ready or ctx is done.
func (s *Surface) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size returns the current bitmap dimensions.
func (s *Surface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Resize changes the bitmap dimensions. Existing content is snapshotted and
// drawn back at the origin; a failed restore is logged and leaves the
// resized surface blank.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize %dx%d: %w", width, height, ErrInvalidSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bitmap != nil && s.width == width && s.height == height {
		return nil
	}

	var saved domain.Snapshot
	var saveErr error
	if s.bitmap != nil {
		saved, saveErr = EncodeSnapshot(s.bitmap)
	}

	s.width, s.height = width, height
	s.bitmap = image.NewNRGBA(image.Rect(0, 0, width, height))
	fill(s.bitmap, s.background)
	s.drawing = false

	if s.mask == nil {
		s.mask = gg.NewContext(width, height)
	} else if err := s.mask.Resize(width, height); err != nil {
		return fmt.Errorf("resize mask: %w", err)
	}

	switch {
	case saveErr != nil:
		log.Printf("[canvas] resize: capture before resize: %v", saveErr)
	case !saved.IsZero():
		img, err := DecodeSnapshot(saved)
		if err != nil {
			log.Printf("[canvas] resize: restore after resize: %v", err)
		} else {
			copyInto(s.bitmap, img)
		}
	}

	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

// Reset clears the bitmap to the background colour and ends any stroke.
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false
	if s.bitmap != nil {
		fill(s.bitmap, s.background)
	}
}

// Export encodes the current bitmap as a PNG data URL.
func (s *Surface) Export() (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmap == nil {
		return "", ErrNotReady
	}
	return EncodeSnapshot(s.bitmap)
}

// Import decodes snap and replaces the current content with it. Decoding
// happens outside the surface lock; on failure the content is untouched.
func (s *Surface) Import(ctx context.Context, snap domain.Snapshot) error {
	img, err := DecodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.DrawImage(img)
}

// DrawImage replaces the current content with img, anchored at the origin.
// Pixels outside img are reset to the background.
func (s *Surface) DrawImage(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmap == nil {
		return ErrNotReady
	}
	s.drawing = false
	fill(s.bitmap, s.background)
	copyInto(s.bitmap, img)
	return nil
}

// Image returns a copy of the bitmap, or nil before the surface is ready.
func (s *Surface) Image() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmap == nil {
		return nil
	}
	out := image.NewNRGBA(s.bitmap.Rect)
	copy(out.Pix, s.bitmap.Pix)
	return out
}

// InkBounds returns the bounding box of all pixels that differ from the
// background. Erased pixels are not ink. ok is false for a blank surface.
func (s *Surface) InkBounds() (r image.Rectangle, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmap == nil {
		return image.Rectangle{}, false
	}
	bg := s.background
	minX, minY, maxX, maxY := s.width, s.height, -1, -1
	for y := 0; y < s.height; y++ {
		row := s.bitmap.Pix[y*s.bitmap.Stride : y*s.bitmap.Stride+s.width*4]
		for x := 0; x < s.width; x++ {
			p := row[x*4 : x*4+4]
			if p[3] == 0 || blank(p, bg) {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// blank reports whether pixel p looks like the background once composited
// over it. Erased pixels, fully or partly, are blank.
func blank(p []uint8, bg color.NRGBA) bool {
	if p[0] == bg.R && p[1] == bg.G && p[2] == bg.B && p[3] == bg.A {
		return true
	}
	a := uint32(p[3])
	over := func(c, b uint8) uint8 { return uint8((uint32(c)*a + uint32(b)*(255-a) + 127) / 255) }
	return over(p[0], bg.R) == bg.R && over(p[1], bg.G) == bg.G && over(p[2], bg.B) == bg.B
}

// ── Tool / blend parameters ────────────────────────────────

// SetBlendMode sets how subsequent strokes combine with existing content.
func (s *Surface) SetBlendMode(mode BlendMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style.blend = mode
}

// BlendMode returns the active blend mode.
func (s *Surface) BlendMode() BlendMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style.blend
}

// SetTool applies width, colour and blend mode of cfg's active tool.
// The eraser is a destination-out stroke.
func (s *Surface) SetTool(cfg domain.ToolConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyToolLocked(cfg)
}

func (s *Surface) applyToolLocked(cfg domain.ToolConfig) {
	s.style.width = cfg.Width()
	if c, err := ParseHexColor(cfg.Color); err == nil {
		s.style.color = c
	}
	if cfg.Tool == domain.ToolEraser {
		s.style.blend = BlendDestinationOut
	} else {
		s.style.blend = BlendSourceOver
	}
}

// ── Stroke state machine ───────────────────────────────────

// PointerDown begins a stroke at (x, y). Ignored before the surface is ready.
func (s *Surface) PointerDown(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bitmap == nil {
		return
	}
	s.drawing = true
	s.lastX, s.lastY = x, y
}

// PointerMove extends the active stroke to (x, y) and composites the new
// segment immediately.
func (s *Surface) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drawing {
		return
	}
	s.segmentLocked(s.lastX, s.lastY, x, y)
	s.lastX, s.lastY = x, y
}

// PointerUp ends the active stroke.
func (s *Surface) PointerUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = false
}

// PointerLeave ends the active stroke when the pointer leaves the surface.
func (s *Surface) PointerLeave() {
	s.PointerUp()
}

// Drawing reports whether a stroke is in progress.
func (s *Surface) Drawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing
}

func (s *Surface) segmentLocked(x0, y0, x1, y1 float64) {
	w := s.style.width
	m := s.mask
	m.SetRGBA(1, 1, 1, 1)
	m.SetLineWidth(w)
	m.SetLineCap(gg.LineCapRound)
	m.SetLineJoin(gg.LineJoinRound)
	m.MoveTo(x0, y0)
	m.LineTo(x1, y1)
	if err := m.Stroke(); err != nil {
		log.Printf("[canvas] stroke segment: %v", err)
		return
	}

	r := segmentBounds(x0, y0, x1, y1, w).Intersect(s.bitmap.Rect)
	if r.Empty() {
		return
	}
	coverage := m.ResizeTarget().Data()
	composite(s.bitmap, coverage, r, s.style.color, s.style.blend)
	clearCoverage(coverage, s.width, r)
}

// segmentBounds is the pixel box touched by a round-capped segment, padded
// for anti-aliasing.
func segmentBounds(x0, y0, x1, y1, width float64) image.Rectangle {
	pad := width/2 + 2
	return image.Rect(
		int(math.Floor(math.Min(x0, x1)-pad)),
		int(math.Floor(math.Min(y0, y1)-pad)),
		int(math.Ceil(math.Max(x0, x1)+pad)),
		int(math.Ceil(math.Max(y0, y1)+pad)),
	)
}
