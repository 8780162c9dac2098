package app

import (
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"inkquiry/internal/domain"
)

// ============================================================
// Session
// ============================================================

// Login signs in and, with the remote page store, loads the user's pages.
func (a *App) Login(email, password string) (*domain.User, error) {
	user, err := a.core.auth.Login(a.ctx, email, password)
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[auth] login: %v", err)
		return nil, err
	}
	if a.core.sync != nil && a.cfg.Store == StoreRemote {
		go a.core.initialLoad(a.ctx)
	}
	return user, nil
}

func (a *App) Signup(in domain.SignupInput) (*domain.User, error) {
	return a.core.auth.Signup(a.ctx, in)
}

func (a *App) Logout() {
	a.core.auth.Logout(a.ctx)
}

func (a *App) CurrentUser() *domain.User {
	return a.core.auth.User()
}

func (a *App) IsLoggedIn() bool {
	return a.core.auth.LoggedIn()
}
