package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
)

var ErrSubmitInProgress = errors.New("calculation already in progress for this page")

// Calculator sends a canvas snapshot and the known variables to the
// recognition service. api.Client implements it.
type Calculator interface {
	Calculate(ctx context.Context, snap domain.Snapshot, vars domain.Variables) ([]domain.Evaluation, error)
}

// Submission is the outcome of one successful calculation.
type Submission struct {
	PageID  string          `json:"pageId"`
	Results []domain.Result `json:"results"`
	// Anchor is the centre of the ink on the canvas at submit time, where
	// the view places the rendered answers.
	Anchor    image.Point `json:"anchor"`
	HasAnchor bool        `json:"hasAnchor"`
}

// ─────────────────────────────────────────────────────────────
// Calculate Service: canvas snapshot → recognition → results
// ─────────────────────────────────────────────────────────────

type CalculateService struct {
	calc     Calculator
	notebook *NotebookService
	surface  *canvas.Surface
	emitter  EventEmitter
	inflight inflightGuard
}

func NewCalculateService(calc Calculator, notebook *NotebookService, surface *canvas.Surface, emitter EventEmitter) *CalculateService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &CalculateService{
		calc:     calc,
		notebook: notebook,
		surface:  surface,
		emitter:  emitter,
	}
}

// Wait blocks until no submission is in flight or ctx is done.
func (s *CalculateService) Wait(ctx context.Context) error {
	return s.inflight.WaitAll(ctx)
}

// IsLoading reports whether a calculation for pageID is in flight.
func (s *CalculateService) IsLoading(pageID string) bool {
	return s.inflight.Running(pageID)
}

// Submit sends the active page's canvas for evaluation. The response is
// applied to the page that was active when Submit was called, even if the
// user has switched pages since. On any failure nothing is mutated.
func (s *CalculateService) Submit(ctx context.Context) (*Submission, error) {
	pageID, snap, err := s.notebook.ExportActive()
	if err != nil {
		return nil, fmt.Errorf("submit canvas: %w", err)
	}
	if err := canvas.ValidateSnapshot(snap); err != nil {
		return nil, fmt.Errorf("submit canvas: %w", err)
	}
	if !s.inflight.TryLock(pageID) {
		return nil, ErrSubmitInProgress
	}
	defer s.inflight.Unlock(pageID)

	sub := &Submission{PageID: pageID}
	if r, ok := s.surface.InkBounds(); ok {
		sub.Anchor = image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
		sub.HasAnchor = true
	}

	s.setLoading(ctx, pageID, true)
	defer s.setLoading(ctx, pageID, false)

	evals, err := s.calc.Calculate(ctx, snap, s.notebook.Variables())
	if err != nil {
		log.Printf("[calc] page %s: %v", pageID, err)
		return nil, fmt.Errorf("calculate: %w", err)
	}

	results, err := s.notebook.ApplyEvaluations(ctx, pageID, evals)
	if err != nil {
		log.Printf("[calc] page %s: %v", pageID, err)
	}
	sub.Results = results
	s.emitter.Emit(ctx, EventCalcResults, sub)
	return sub, nil
}

func (s *CalculateService) setLoading(ctx context.Context, pageID string, loading bool) {
	s.emitter.Emit(ctx, EventCalcLoading, map[string]any{
		"pageId":  pageID,
		"loading": loading,
	})
}
