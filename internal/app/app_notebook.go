package app

// ─────────────────────────────────────────────────────────────
// Page + Result Handlers: thin delegates to the services
// ─────────────────────────────────────────────────────────────

import (
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"inkquiry/internal/domain"
	"inkquiry/internal/service"
)

// ── Pages ──────────────────────────────────────────────────

func (a *App) GetNotebookState() domain.NotebookState {
	return a.core.notebook.State()
}

func (a *App) AddPage() (domain.Page, error) {
	return a.core.notebook.AddPage(a.ctx)
}

// SelectPage returns the page's results at once; its canvas follows with a
// canvas:changed event.
func (a *App) SelectPage(id string) ([]domain.Result, error) {
	results, _, err := a.core.notebook.SelectPage(a.ctx, id)
	return results, err
}

func (a *App) RenamePage(id, name string) error {
	return a.core.notebook.RenamePage(a.ctx, id, name)
}

func (a *App) DeletePage(id string) error {
	_, err := a.core.notebook.DeletePage(a.ctx, id)
	return err
}

// ── Results ────────────────────────────────────────────────

func (a *App) Submit() (*service.Submission, error) {
	wailsRuntime.LogInfof(a.ctx, "[calc] submitting page %s", a.core.notebook.ActivePageID())
	return a.core.calc.Submit(a.ctx)
}

func (a *App) IsCalculating() bool {
	return a.core.calc.IsLoading(a.core.notebook.ActivePageID())
}

func (a *App) ClearResults() {
	a.core.notebook.ClearResults(a.ctx)
}

// ── Sync ───────────────────────────────────────────────────

func (a *App) SavePage() (domain.Page, error) {
	if a.core.sync == nil {
		return domain.Page{}, service.ErrSyncUnavailable
	}
	return a.core.sync.SaveCurrent(a.ctx)
}

func (a *App) LoadPages() (domain.NotebookState, error) {
	if a.core.sync == nil {
		return domain.NotebookState{}, service.ErrSyncUnavailable
	}
	if _, err := a.core.sync.LoadAll(a.ctx); err != nil {
		return a.core.notebook.State(), fmt.Errorf("load pages: %w", err)
	}
	return a.core.notebook.State(), nil
}

func (a *App) IsSaving() bool {
	return a.core.sync != nil && a.core.sync.Saving()
}
