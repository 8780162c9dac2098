package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
)

var (
	ErrPageLimit     = errors.New("page limit reached")
	ErrLastPage      = errors.New("cannot delete the last page")
	ErrEmptyPageName = errors.New("page name must not be empty")
	ErrPageNotFound  = errors.New("page not found")
)

// DefaultMaxPages is the page bound when none is configured.
const DefaultMaxPages = 5

// RemoteDeleter is the hook the page model uses to remove persisted pages
// from the backend before dropping them locally. SyncService implements it.
type RemoteDeleter interface {
	DeleteRemote(ctx context.Context, id string) error
	IsPersisted(id string) bool
}

// ─────────────────────────────────────────────────────────────
// Restore: asynchronous snapshot restore of an activated page
// ─────────────────────────────────────────────────────────────

// Restore completes once the snapshot of an activated page has been drawn,
// skipped or superseded by a newer activation.
type Restore struct {
	pageID  string
	done    chan struct{}
	applied bool
	err     error
}

func completedRestore(pageID string) *Restore {
	r := &Restore{pageID: pageID, done: make(chan struct{})}
	close(r.done)
	return r
}

func (r *Restore) PageID() string { return r.pageID }

func (r *Restore) Done() <-chan struct{} { return r.done }

// Wait blocks until the restore completes and returns its decode error, if any.
func (r *Restore) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Applied reports whether the snapshot was drawn. It is false while the
// restore is pending, when there was nothing to draw, and when a later
// activation fenced it off.
func (r *Restore) Applied() bool {
	select {
	case <-r.done:
		return r.applied
	default:
		return false
	}
}

// ─────────────────────────────────────────────────────────────
// Notebook Service: pages, active page, results and variables
// ─────────────────────────────────────────────────────────────

// NotebookService owns the page list and the variable table. It captures
// the canvas of the outgoing page on every switch and restores the incoming
// page's snapshot asynchronously, fenced by an activation generation.
//
// Lock order: NotebookService.mu, then the surface lock.
type NotebookService struct {
	mu       sync.Mutex
	surface  *canvas.Surface
	emitter  EventEmitter
	remote   RemoteDeleter
	maxPages int

	pages    []domain.Page
	activeID string
	vars     domain.Variables
	gen      uint64

	// pending is the restore of the active page while its snapshot has not
	// reached the canvas yet; it only counts while pendingGen == gen.
	pending    *Restore
	pendingGen uint64
}

// NewNotebookService creates a notebook with a single empty active page.
func NewNotebookService(surface *canvas.Surface, maxPages int, emitter EventEmitter) *NotebookService {
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	first := newPage(1)
	return &NotebookService{
		surface:  surface,
		emitter:  emitter,
		maxPages: maxPages,
		pages:    []domain.Page{first},
		activeID: first.ID,
		vars:     domain.Variables{},
	}
}

// SetRemoteDeleter installs the hook used by DeletePage.
func (s *NotebookService) SetRemoteDeleter(r RemoteDeleter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = r
}

func newPage(n int) domain.Page {
	return domain.Page{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Page %d", n),
		CreatedAt: time.Now().UTC(),
		Results:   []domain.Result{},
	}
}

// ── Reads ──────────────────────────────────────────────────

func (s *NotebookService) MaxPages() int { return s.maxPages }

func (s *NotebookService) Pages() []domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Page, len(s.pages))
	for i, p := range s.pages {
		out[i] = p.Clone()
	}
	return out
}

func (s *NotebookService) ActivePageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *NotebookService) ActivePage() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[s.indexLocked(s.activeID)].Clone()
}

// Page returns a copy of the page with the given id.
func (s *NotebookService) Page(id string) (domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return domain.Page{}, fmt.Errorf("get page %s: %w", id, ErrPageNotFound)
	}
	return s.pages[i].Clone(), nil
}

// Results returns the visible results, those of the active page.
func (s *NotebookService) Results() []domain.Result {
	return s.ActivePage().Results
}

func (s *NotebookService) Variables() domain.Variables {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars.Clone()
}

// State returns everything the view needs to render the sidebar and the
// results panel.
func (s *NotebookService) State() domain.NotebookState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *NotebookService) stateLocked() domain.NotebookState {
	st := domain.NotebookState{
		Pages:        make([]domain.PageSummary, 0, len(s.pages)),
		ActivePageID: s.activeID,
		Variables:    s.vars.Clone(),
		MaxPages:     s.maxPages,
	}
	for _, p := range s.pages {
		st.Pages = append(st.Pages, domain.PageSummary{
			ID:          p.ID,
			Name:        p.Name,
			CreatedAt:   p.CreatedAt,
			ResultCount: len(p.Results),
			HasSnapshot: !p.Snapshot.IsZero(),
			Persisted:   s.remote != nil && s.remote.IsPersisted(p.ID),
		})
		if p.ID == s.activeID {
			st.Results = append([]domain.Result{}, p.Results...)
		}
	}
	return st
}

// ── Pages ──────────────────────────────────────────────────

// AddPage creates "Page N", makes it active and clears the canvas.
func (s *NotebookService) AddPage(ctx context.Context) (domain.Page, error) {
	s.mu.Lock()
	if len(s.pages) >= s.maxPages {
		s.mu.Unlock()
		return domain.Page{}, fmt.Errorf("add page (max %d): %w", s.maxPages, ErrPageLimit)
	}
	s.captureLocked()
	p := newPage(len(s.pages) + 1)
	s.pages = append(s.pages, p)
	s.activateLocked(ctx, p.ID)
	s.mu.Unlock()

	s.emitChanged(ctx)
	return p.Clone(), nil
}

// SelectPage captures the outgoing page, activates id and starts restoring
// its snapshot. The returned results are the new visible results.
func (s *NotebookService) SelectPage(ctx context.Context, id string) ([]domain.Result, *Restore, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("select page %s: %w", id, ErrPageNotFound)
	}
	results := append([]domain.Result{}, s.pages[i].Results...)
	if id == s.activeID {
		s.mu.Unlock()
		return results, completedRestore(id), nil
	}
	s.captureLocked()
	restore := s.activateLocked(ctx, id)
	s.mu.Unlock()

	s.emitChanged(ctx)
	return results, restore, nil
}

// RenamePage sets a trimmed, non-empty name.
func (s *NotebookService) RenamePage(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("rename page %s: %w", id, ErrEmptyPageName)
	}
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("rename page %s: %w", id, ErrPageNotFound)
	}
	s.pages[i].Name = name
	s.mu.Unlock()

	s.emitChanged(ctx)
	return nil
}

// DeletePage removes a page. A persisted page is deleted remotely first and
// stays in place if that fails. Deleting the active page activates the
// first remaining one.
func (s *NotebookService) DeletePage(ctx context.Context, id string) (*Restore, error) {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("delete page %s: %w", id, ErrPageNotFound)
	}
	if len(s.pages) <= 1 {
		s.mu.Unlock()
		return nil, fmt.Errorf("delete page %s: %w", id, ErrLastPage)
	}
	remote := s.remote
	s.mu.Unlock()

	if remote != nil {
		if err := remote.DeleteRemote(ctx, id); err != nil {
			log.Printf("[notebook] delete page %s remotely: %v", id, err)
			s.emitter.Emit(ctx, EventPageError, map[string]string{
				"pageId": id,
				"error":  err.Error(),
			})
			return nil, fmt.Errorf("delete page %s: %w", id, err)
		}
	}

	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		restore := completedRestore(s.activeID)
		s.mu.Unlock()
		return restore, nil
	}
	if len(s.pages) <= 1 {
		s.mu.Unlock()
		return nil, fmt.Errorf("delete page %s: %w", id, ErrLastPage)
	}
	s.pages = slices.Delete(s.pages, i, i+1)
	restore := completedRestore(s.activeID)
	if s.activeID == id {
		restore = s.activateLocked(ctx, s.pages[0].ID)
	}
	s.mu.Unlock()

	s.emitChanged(ctx)
	return restore, nil
}

// ReplacePages swaps the whole page list for pages (a remote load), makes
// the first one active and starts restoring its snapshot. An empty list
// leaves the notebook untouched.
func (s *NotebookService) ReplacePages(ctx context.Context, pages []domain.Page) *Restore {
	if len(pages) == 0 {
		return completedRestore(s.ActivePageID())
	}

	loaded := make([]domain.Page, 0, len(pages))
	seen := make(map[string]bool, len(pages))
	for i, p := range pages {
		p = p.Clone()
		if p.ID == "" || seen[p.ID] {
			p.ID = uuid.New().String()
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Name) == "" {
			p.Name = fmt.Sprintf("Page %d", i+1)
		}
		if p.Results == nil {
			p.Results = []domain.Result{}
		}
		loaded = append(loaded, p)
	}
	if len(loaded) > s.maxPages {
		log.Printf("[notebook] loaded %d pages, above the limit of %d", len(loaded), s.maxPages)
	}

	s.mu.Lock()
	s.pages = loaded
	restore := s.activateLocked(ctx, loaded[0].ID)
	s.mu.Unlock()

	s.emitChanged(ctx)
	return restore
}

// ── Canvas capture ─────────────────────────────────────────

// ExportActive exports the canvas without touching the page model. While
// the active page is still being restored its stored snapshot is returned.
func (s *NotebookService) ExportActive() (pageID string, snap domain.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingLocked() != nil {
		return s.activeID, s.pages[s.indexLocked(s.activeID)].Snapshot, nil
	}
	snap, err = s.surface.Export()
	return s.activeID, snap, err
}

// CaptureActive stores a fresh snapshot on the active page and returns a
// copy of it. When the canvas cannot be exported the previously stored
// snapshot is kept.
func (s *NotebookService) CaptureActive() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureLocked()
	return s.pages[s.indexLocked(s.activeID)].Clone()
}

func (s *NotebookService) captureLocked() {
	i := s.indexLocked(s.activeID)
	if i < 0 {
		return
	}
	// The canvas is blank until the restore lands; the stored snapshot is
	// still the page's content.
	if s.pendingLocked() != nil {
		return
	}
	snap, err := s.surface.Export()
	if err != nil {
		if !errors.Is(err, canvas.ErrNotReady) {
			log.Printf("[notebook] capture page %s: %v", s.activeID, err)
		}
		return
	}
	s.pages[i].Snapshot = snap
}

// activateLocked switches the active page, clears the canvas and restores
// the page's snapshot in the background. Any restore still in flight for
// an earlier activation is fenced off by the generation bump.
func (s *NotebookService) activateLocked(ctx context.Context, id string) *Restore {
	s.activeID = id
	s.gen++
	s.surface.Reset()

	s.pending = nil
	snap := s.pages[s.indexLocked(id)].Snapshot
	if snap.IsZero() {
		return completedRestore(id)
	}
	r := &Restore{pageID: id, done: make(chan struct{})}
	s.pending, s.pendingGen = r, s.gen
	go s.restore(ctx, r, s.gen, snap)
	return r
}

// pendingLocked returns the active page's unapplied restore, if any.
func (s *NotebookService) pendingLocked() *Restore {
	if s.pending == nil || s.pendingGen != s.gen {
		return nil
	}
	return s.pending
}

// settleLocked marks the restore of generation gen as finished.
func (s *NotebookService) settleLocked(gen uint64) {
	if s.pendingGen == gen {
		s.pending = nil
	}
}

func (s *NotebookService) restore(ctx context.Context, r *Restore, gen uint64, snap domain.Snapshot) {
	defer close(r.done)

	if err := ctx.Err(); err != nil {
		r.err = err
		return
	}
	if err := s.surface.WaitReady(ctx); err != nil {
		r.err = err
		return
	}
	img, err := canvas.DecodeSnapshot(snap)
	if err != nil {
		log.Printf("[notebook] restore page %s: %v", r.pageID, err)
		s.mu.Lock()
		s.settleLocked(gen)
		s.mu.Unlock()
		r.err = err
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	err = s.surface.DrawImage(img)
	s.settleLocked(gen)
	s.mu.Unlock()
	if err != nil {
		log.Printf("[notebook] restore page %s: %v", r.pageID, err)
		r.err = err
		return
	}
	r.applied = true
	s.emitter.Emit(ctx, EventCanvasChanged, map[string]string{"pageId": r.pageID})
}

// PointerDown starts a stroke on the active page. A restore still in flight
// for that page is waited for first, so the stroke lands on top of the
// restored drawing instead of being wiped by it.
func (s *NotebookService) PointerDown(ctx context.Context, x, y float64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		r := s.pendingLocked()
		if r == nil {
			s.surface.PointerDown(x, y)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-s.surface.Ready():
		default:
			// Not drawable yet; the surface ignores the event.
			return nil
		}
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}

		// A restore whose own context was cancelled is still pending; redo
		// it here with ours.
		s.mu.Lock()
		if s.pendingLocked() != r {
			s.mu.Unlock()
			continue
		}
		retry := &Restore{pageID: r.pageID, done: make(chan struct{})}
		s.pending = retry
		gen := s.gen
		snap := s.pages[s.indexLocked(s.activeID)].Snapshot
		s.mu.Unlock()
		s.restore(ctx, retry, gen, snap)
	}
}

// ImportSnapshot replaces the active page's canvas with snap. Any pending
// restore is fenced off.
func (s *NotebookService) ImportSnapshot(ctx context.Context, snap domain.Snapshot) error {
	img, err := canvas.DecodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	s.mu.Lock()
	s.gen++
	pageID := s.activeID
	err = s.surface.DrawImage(img)
	if err == nil {
		s.pages[s.indexLocked(pageID)].Snapshot = snap
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	s.emitter.Emit(ctx, EventCanvasChanged, map[string]string{"pageId": pageID})
	return nil
}

// ── Results & variables ────────────────────────────────────

// ApplyEvaluations merges assignments into the variable table and appends
// one result per evaluation to pageID, the page that was active when the
// request was submitted. If that page is gone the variables are still
// merged and ErrPageNotFound is returned.
func (s *NotebookService) ApplyEvaluations(ctx context.Context, pageID string, evals []domain.Evaluation) ([]domain.Result, error) {
	results := make([]domain.Result, 0, len(evals))
	for _, e := range evals {
		results = append(results, domain.Result{Expression: e.Expr, Answer: e.Result})
	}

	s.mu.Lock()
	for _, e := range evals {
		if e.Assign {
			s.vars[e.Expr] = e.Result
		}
	}
	i := s.indexLocked(pageID)
	if i >= 0 {
		s.pages[i].Results = append(s.pages[i].Results, results...)
	}
	s.mu.Unlock()

	s.emitChanged(ctx)
	if i < 0 {
		return results, fmt.Errorf("apply results to %s: %w", pageID, ErrPageNotFound)
	}
	return results, nil
}

// ClearResults empties the active page's results. Idempotent.
func (s *NotebookService) ClearResults(ctx context.Context) {
	s.mu.Lock()
	s.pages[s.indexLocked(s.activeID)].Results = []domain.Result{}
	s.mu.Unlock()
	s.emitChanged(ctx)
}

// Reset clears the canvas, the active page's results and snapshot, and the
// variable table.
func (s *NotebookService) Reset(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	s.surface.Reset()
	i := s.indexLocked(s.activeID)
	s.pages[i].Results = []domain.Result{}
	s.pages[i].Snapshot = ""
	s.vars = domain.Variables{}
	s.mu.Unlock()

	s.emitter.Emit(ctx, EventCanvasChanged, map[string]string{"pageId": s.ActivePageID()})
	s.emitChanged(ctx)
}

func (s *NotebookService) indexLocked(id string) int {
	return slices.IndexFunc(s.pages, func(p domain.Page) bool { return p.ID == id })
}

func (s *NotebookService) emitChanged(ctx context.Context) {
	s.emitter.Emit(ctx, EventNotebookChanged, s.State())
}
