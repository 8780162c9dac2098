package service_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
	"inkquiry/internal/service"
)

func newSync(t *testing.T, store *memStore) (*service.SyncService, *service.NotebookService, *canvas.Surface, *service.MockEmitter) {
	t.Helper()
	nb, surface, em := newNotebook(t, 5)
	return service.NewSyncService(store, nb, surface, em), nb, surface, em
}

func TestSync_SaveCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	sync, nb, surface, _ := newSync(t, store)
	id := nb.ActivePageID()
	scribble(surface, 10, 10)

	if sync.IsPersisted(id) {
		t.Fatal("new page should not be persisted")
	}
	saved, err := sync.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != id || saved.Snapshot.IsZero() {
		t.Fatalf("unexpected saved page %+v", saved)
	}
	if !sync.IsPersisted(id) {
		t.Fatal("page should be persisted after save")
	}

	scribble(surface, 25, 25)
	if _, err := sync.SaveCurrent(ctx); err != nil {
		t.Fatalf("second save: %v", err)
	}
	creates, updates := store.counts()
	if creates != 1 || updates != 1 {
		t.Fatalf("creates=%d updates=%d, want 1/1", creates, updates)
	}
	if !bytes.Equal(pixels(t, store.pages[0].Snapshot), surface.Image().Pix) {
		t.Fatal("stored snapshot is not the current canvas")
	}
}

func TestSync_SaveFailureLeavesPageUnpersisted(t *testing.T) {
	store := &memStore{writeErr: errors.New("503")}
	sync, nb, surface, em := newSync(t, store)
	scribble(surface, 10, 10)

	if _, err := sync.SaveCurrent(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if sync.IsPersisted(nb.ActivePageID()) {
		t.Fatal("failed save must not mark the page persisted")
	}
	if em.Count(service.EventPageError) != 1 {
		t.Fatal("expected page:error")
	}
}

func TestSync_SaveRejectsMissingSnapshot(t *testing.T) {
	store := &memStore{}
	nb := service.NewNotebookService(canvas.New(), 5, nil)
	sync := service.NewSyncService(store, nb, canvas.New(), nil)

	_, err := sync.SaveCurrent(context.Background())
	if !errors.Is(err, canvas.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
	if c, u := store.counts(); c != 0 || u != 0 {
		t.Fatal("nothing should be written")
	}
}

func TestSync_SaveFallsBackToStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	surface := canvas.New() // never ready: capture fails
	nb := service.NewNotebookService(surface, 5, nil)
	sync := service.NewSyncService(store, nb, surface, nil)

	snap := snapshotOf(t, 5, 5)
	nb.ReplacePages(ctx, []domain.Page{{ID: "p1", Name: "Loaded", Snapshot: snap}})

	saved, err := sync.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Snapshot != snap {
		t.Fatal("expected the stored snapshot to be saved")
	}
}

func TestSync_OneSaveAtATime(t *testing.T) {
	ctx := context.Background()
	store := &memStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sync, _, _, _ := newSync(t, store)

	errc := make(chan error, 1)
	go func() {
		_, err := sync.SaveCurrent(ctx)
		errc <- err
	}()
	<-store.entered

	if !sync.Saving() {
		t.Fatal("expected a save in flight")
	}
	if _, err := sync.SaveCurrent(ctx); !errors.Is(err, service.ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress, got %v", err)
	}
	close(store.block)
	if err := <-errc; err != nil {
		t.Fatalf("first save: %v", err)
	}
}

func TestSync_WaitDrainsSave(t *testing.T) {
	ctx := context.Background()
	store := &memStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sync, _, _, _ := newSync(t, store)

	if err := sync.Wait(ctx); err != nil {
		t.Fatalf("wait with nothing in flight: %v", err)
	}

	go sync.SaveCurrent(ctx)
	<-store.entered

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := sync.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to block on the save, got %v", err)
	}

	close(store.block)
	if err := sync.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if creates, _ := store.counts(); creates != 1 {
		t.Fatalf("creates = %d, want save finished before Wait returned", creates)
	}
}

func TestSync_LoadAll(t *testing.T) {
	ctx := context.Background()
	snap := snapshotOf(t, 8, 8)
	store := &memStore{pages: []domain.Page{
		{ID: "r1", Name: "Remote 1", Snapshot: snap, Results: []domain.Result{{Expression: "1+1", Answer: "2"}}},
		{ID: "r2", Name: "Remote 2"},
	}}
	sync, nb, surface, _ := newSync(t, store)

	n, err := sync.LoadAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("LoadAll = %d, %v", n, err)
	}
	if !slices.Equal(pageIDs(nb.Pages()), []string{"r1", "r2"}) {
		t.Fatalf("pages = %v", pageIDs(nb.Pages()))
	}
	if nb.ActivePageID() != "r1" || len(nb.Results()) != 1 {
		t.Fatalf("active %s results %v", nb.ActivePageID(), nb.Results())
	}
	if !sync.IsPersisted("r1") || !sync.IsPersisted("r2") {
		t.Fatal("loaded pages should be persisted")
	}
	if !bytes.Equal(pixels(t, snap), surface.Image().Pix) {
		t.Fatal("first page snapshot not restored")
	}
}

func TestSync_LoadAllKeepsLocalState(t *testing.T) {
	ctx := context.Background()

	t.Run("no remote pages", func(t *testing.T) {
		sync, nb, _, _ := newSync(t, &memStore{})
		before := pageIDs(nb.Pages())
		n, err := sync.LoadAll(ctx)
		if err != nil || n != 0 {
			t.Fatalf("LoadAll = %d, %v", n, err)
		}
		if !slices.Equal(before, pageIDs(nb.Pages())) {
			t.Fatal("local notebook replaced")
		}
	})

	t.Run("network failure", func(t *testing.T) {
		sync, nb, _, _ := newSync(t, &memStore{listErr: errors.New("connection refused")})
		before := pageIDs(nb.Pages())
		if _, err := sync.LoadAll(ctx); err == nil {
			t.Fatal("expected error")
		}
		if !slices.Equal(before, pageIDs(nb.Pages())) {
			t.Fatal("local notebook replaced")
		}
	})
}

func TestSync_LoadAllWaitsForCanvas(t *testing.T) {
	store := &memStore{pages: []domain.Page{{ID: "r1", Name: "Remote"}}}
	surface := canvas.New()
	nb := service.NewNotebookService(surface, 5, nil)
	sync := service.NewSyncService(store, nb, surface, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sync.LoadAll(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while canvas not ready, got %v", err)
	}

	surface.Resize(testSize, testSize)
	if n, err := sync.LoadAll(context.Background()); err != nil || n != 1 {
		t.Fatalf("LoadAll = %d, %v", n, err)
	}
}

func TestSync_LoadAllFailureKeepsPersistedSet(t *testing.T) {
	store := &memStore{}
	surface := canvas.New()
	nb := service.NewNotebookService(surface, 5, nil)
	sync := service.NewSyncService(store, nb, surface, nil)
	nb.ReplacePages(context.Background(), []domain.Page{{ID: "local", Name: "Local", Snapshot: snapshotOf(t, 4, 4)}})

	if _, err := sync.SaveCurrent(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.pages = append(store.pages, domain.Page{ID: "r1", Name: "Remote"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sync.LoadAll(ctx); err == nil {
		t.Fatal("expected LoadAll to fail while canvas not ready")
	}
	if !slices.Equal(pageIDs(nb.Pages()), []string{"local"}) {
		t.Fatalf("pages = %v", pageIDs(nb.Pages()))
	}
	if !sync.IsPersisted("local") {
		t.Fatal("local page lost its persisted flag")
	}
	if sync.IsPersisted("r1") {
		t.Fatal("page that was never loaded marked persisted")
	}
}

func TestSync_DeleteThroughNotebook(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	sync, nb, surface, _ := newSync(t, store)
	first := nb.ActivePageID()
	scribble(surface, 5, 5)
	if _, err := sync.SaveCurrent(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	p2, _ := nb.AddPage(ctx)

	// Unpersisted page: no remote call.
	nb.AddPage(ctx)
	p3 := nb.ActivePageID()
	if _, err := nb.DeletePage(ctx, p3); err != nil {
		t.Fatalf("delete p3: %v", err)
	}
	if len(store.deletes) != 0 {
		t.Fatalf("unexpected remote deletes %v", store.deletes)
	}

	if _, err := nb.DeletePage(ctx, first); err != nil {
		t.Fatalf("delete first: %v", err)
	}
	if !slices.Equal(store.deletes, []string{first}) {
		t.Fatalf("remote deletes = %v", store.deletes)
	}
	if sync.IsPersisted(first) {
		t.Fatal("deleted page still persisted")
	}
	if nb.ActivePageID() != p2.ID {
		t.Fatalf("active = %s, want %s", nb.ActivePageID(), p2.ID)
	}

	store.deleteErr = errors.New("500")
	if _, err := sync.SaveCurrent(ctx); err != nil {
		t.Fatalf("save p2: %v", err)
	}
	nb.AddPage(ctx)
	if _, err := nb.DeletePage(ctx, p2.ID); err == nil {
		t.Fatal("expected remote failure")
	}
	if !slices.Contains(pageIDs(nb.Pages()), p2.ID) || !sync.IsPersisted(p2.ID) {
		t.Fatal("page must survive a failed remote delete")
	}
}

func TestSync_Autosave(t *testing.T) {
	store := &memStore{}
	sync, _, surface, _ := newSync(t, store)
	scribble(surface, 5, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sync.StartAutosave(ctx, "not a spec"); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if err := sync.StartAutosave(ctx, "@every 1s"); err != nil {
		t.Fatalf("StartAutosave: %v", err)
	}
	defer sync.Stop()

	deadline := time.After(5 * time.Second)
	for {
		if c, _ := store.counts(); c > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("autosave never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestSync_SaveDuringRestoreSavesDrawing(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	sync, nb, surface, _ := newSync(t, store)
	a := nb.ActivePageID()
	scribble(surface, 10, 10)
	nb.AddPage(ctx)
	page, _ := nb.Page(a)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, r, _ := nb.SelectPage(cancelled, a)
	<-r.Done()

	saved, err := sync.SaveCurrent(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != a || saved.Snapshot != page.Snapshot {
		t.Fatal("save sent a blank canvas instead of the page's drawing")
	}
}
