package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
)

var (
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrSyncUnavailable is returned by callers that have no page store configured.
	ErrSyncUnavailable = errors.New("page sync is not configured")
)

const saveKey = "save"

// ─────────────────────────────────────────────────────────────
// Sync Service: page persistence against a PageStore
// ─────────────────────────────────────────────────────────────

// SyncService moves pages between the notebook and a PageStore. It only
// tracks which page IDs exist remotely; the pages themselves belong to
// NotebookService.
type SyncService struct {
	store    domain.PageStore
	notebook *NotebookService
	surface  *canvas.Surface
	emitter  EventEmitter

	mu        sync.Mutex
	persisted map[string]struct{}
	saving    inflightGuard

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewSyncService creates a SyncService and registers it as the notebook's
// remote deleter.
func NewSyncService(store domain.PageStore, notebook *NotebookService, surface *canvas.Surface, emitter EventEmitter) *SyncService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	s := &SyncService{
		store:     store,
		notebook:  notebook,
		surface:   surface,
		emitter:   emitter,
		persisted: make(map[string]struct{}),
	}
	notebook.SetRemoteDeleter(s)
	return s
}

func (s *SyncService) IsPersisted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.persisted[id]
	return ok
}

func (s *SyncService) markPersisted(id string) {
	s.mu.Lock()
	s.persisted[id] = struct{}{}
	s.mu.Unlock()
}

func (s *SyncService) forget(id string) {
	s.mu.Lock()
	delete(s.persisted, id)
	s.mu.Unlock()
}

// LoadAll fetches every page and replaces the notebook with them. With no
// remote pages the local notebook is kept. Fetch errors are returned after
// logging; callers keep their local state.
func (s *SyncService) LoadAll(ctx context.Context) (int, error) {
	pages, err := s.store.ListPages(ctx)
	if err != nil {
		log.Printf("[sync] load pages: %v", err)
		return 0, fmt.Errorf("load pages: %w", err)
	}
	if len(pages) == 0 {
		log.Printf("[sync] no saved pages, keeping local notebook")
		return 0, nil
	}

	if err := s.surface.WaitReady(ctx); err != nil {
		return 0, fmt.Errorf("load pages: wait for canvas: %w", err)
	}
	restore := s.notebook.ReplacePages(ctx, pages)

	// Only now do the local pages give way to the loaded ones.
	s.mu.Lock()
	clear(s.persisted)
	for _, p := range pages {
		if p.ID != "" {
			s.persisted[p.ID] = struct{}{}
		}
	}
	s.mu.Unlock()

	if err := restore.Wait(ctx); err != nil {
		log.Printf("[sync] restore page %s: %v", restore.PageID(), err)
	}
	log.Printf("[sync] loaded %d pages", len(pages))
	return len(pages), nil
}

// SaveCurrent writes the active page with a freshly captured snapshot,
// creating it remotely the first time and updating it afterwards.
func (s *SyncService) SaveCurrent(ctx context.Context) (domain.Page, error) {
	if !s.saving.TryLock(saveKey) {
		return domain.Page{}, ErrSaveInProgress
	}
	defer s.saving.Unlock(saveKey)

	page := s.notebook.CaptureActive()
	if err := canvas.ValidateSnapshot(page.Snapshot); err != nil {
		return domain.Page{}, fmt.Errorf("save page %s: %w", page.ID, err)
	}

	var err error
	if s.IsPersisted(page.ID) {
		err = s.store.UpdatePage(ctx, &page)
	} else {
		err = s.store.CreatePage(ctx, &page)
	}
	if err != nil {
		log.Printf("[sync] save page %s: %v", page.ID, err)
		s.emitter.Emit(ctx, EventPageError, map[string]string{
			"pageId": page.ID,
			"error":  err.Error(),
		})
		return domain.Page{}, fmt.Errorf("save page %s: %w", page.ID, err)
	}
	s.markPersisted(page.ID)
	s.emitter.Emit(ctx, EventNotebookChanged, s.notebook.State())
	return page, nil
}

// Wait blocks until no save is in flight or ctx is done.
func (s *SyncService) Wait(ctx context.Context) error {
	return s.saving.WaitAll(ctx)
}

// Saving reports whether a save is in flight.
func (s *SyncService) Saving() bool {
	return s.saving.Running(saveKey)
}

// DeleteRemote removes a persisted page from the store. Unpersisted pages
// need no remote call.
func (s *SyncService) DeleteRemote(ctx context.Context, id string) error {
	if !s.IsPersisted(id) {
		return nil
	}
	if err := s.store.DeletePage(ctx, id); err != nil {
		return fmt.Errorf("delete remote page: %w", err)
	}
	s.forget(id)
	return nil
}

// ── Autosave ───────────────────────────────────────────────

// StartAutosave runs SaveCurrent on the given cron spec (e.g. "@every 2m")
// until Stop is called or ctx is done.
func (s *SyncService) StartAutosave(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.SaveCurrent(ctx); err != nil && !errors.Is(err, ErrSaveInProgress) {
			log.Printf("[sync] autosave: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule autosave %q: %w", spec, err)
	}

	s.cronMu.Lock()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron = c
	s.cronMu.Unlock()

	c.Start()
	go func() {
		<-ctx.Done()
		s.cronMu.Lock()
		if s.cron == c {
			s.cron = nil
		}
		s.cronMu.Unlock()
		c.Stop()
	}()
	log.Printf("[sync] autosave scheduled: %s", spec)
	return nil
}

// Stop halts autosave and waits for a running save to finish.
func (s *SyncService) Stop() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
