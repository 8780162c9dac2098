package service_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
	"inkquiry/internal/service"
)

const testSize = 48

func newReadySurface(t *testing.T) *canvas.Surface {
	t.Helper()
	s := canvas.New()
	if err := s.Resize(testSize, testSize); err != nil {
		t.Fatalf("resize: %v", err)
	}
	return s
}

func newNotebook(t *testing.T, maxPages int) (*service.NotebookService, *canvas.Surface, *service.MockEmitter) {
	t.Helper()
	surface := newReadySurface(t)
	em := &service.MockEmitter{}
	return service.NewNotebookService(surface, maxPages, em), surface, em
}

// scribble draws a short diagonal stroke starting at (x, y).
func scribble(s *canvas.Surface, x, y float64) {
	s.PointerDown(x, y)
	s.PointerMove(x+8, y+8)
	s.PointerMove(x+16, y+4)
	s.PointerUp()
}

// snapshotOf renders a scribble at (x, y) on a fresh surface.
func snapshotOf(t *testing.T, x, y float64) domain.Snapshot {
	t.Helper()
	s := newReadySurface(t)
	scribble(s, x, y)
	snap, err := s.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return snap
}

func pixels(t *testing.T, snap domain.Snapshot) []byte {
	t.Helper()
	s := newReadySurface(t)
	if err := s.Import(context.Background(), snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	return s.Image().Pix
}

func pageIDs(pages []domain.Page) []string {
	ids := make([]string, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	return ids
}

// ─────────────────────────────────────────────────────────────
// memStore: in-memory domain.PageStore
// ─────────────────────────────────────────────────────────────

type memStore struct {
	mu      sync.Mutex
	pages   []domain.Page
	creates int
	updates int
	deletes []string

	listErr   error
	writeErr  error
	deleteErr error

	// block, when set, makes CreatePage signal entered and wait on it.
	block   chan struct{}
	entered chan struct{}
}

func (m *memStore) ListPages(context.Context) ([]domain.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Page, len(m.pages))
	for i, p := range m.pages {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *memStore) CreatePage(ctx context.Context, p *domain.Page) error {
	if m.block != nil {
		m.entered <- struct{}{}
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.creates++
	m.pages = append(m.pages, p.Clone())
	return nil
}

func (m *memStore) UpdatePage(_ context.Context, p *domain.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	i := slices.IndexFunc(m.pages, func(q domain.Page) bool { return q.ID == p.ID })
	if i < 0 {
		return errors.New("not found")
	}
	m.updates++
	m.pages[i] = p.Clone()
	return nil
}

func (m *memStore) DeletePage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletes = append(m.deletes, id)
	m.pages = slices.DeleteFunc(m.pages, func(p domain.Page) bool { return p.ID == id })
	return nil
}

func (m *memStore) counts() (creates, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.updates
}

// ─────────────────────────────────────────────────────────────
// fakeCalculator
// ─────────────────────────────────────────────────────────────

type fakeCalculator struct {
	mu    sync.Mutex
	evals []domain.Evaluation
	err   error
	calls int
	vars  []domain.Variables

	block   chan struct{}
	entered chan struct{}
}

func (f *fakeCalculator) Calculate(ctx context.Context, snap domain.Snapshot, vars domain.Variables) ([]domain.Evaluation, error) {
	f.mu.Lock()
	f.calls++
	f.vars = append(f.vars, vars)
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if block != nil {
		entered <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := canvas.ValidateSnapshot(snap); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evals, f.err
}

func (f *fakeCalculator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
