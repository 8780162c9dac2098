package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"inkquiry/internal/api"
	"inkquiry/internal/canvas"
	"inkquiry/internal/domain"
	"inkquiry/internal/secret"
	"inkquiry/internal/service"
	"inkquiry/internal/storage"
	"inkquiry/internal/watcher"
)

// core is the application state shared by the Wails shell and the
// standalone MCP server.
type core struct {
	cfg Config

	db       *storage.DB // local settings database; nil if it failed to open
	client   *api.Client
	auth     *service.AuthService
	settings *service.SettingsService

	surface  *canvas.Surface
	tools    *canvas.ToolState
	notebook *service.NotebookService
	sync     *service.SyncService // nil with INKQUIRY_STORE=none
	calc     *service.CalculateService

	inbox   *watcher.Inbox
	closers []func() error
}

func newCore(ctx context.Context, cfg Config, emitter service.EventEmitter) (*core, error) {
	c := &core{cfg: cfg}

	db, err := storage.OpenSQLite(cfg.DBPath())
	if err != nil {
		if cfg.Store == StoreSQLite {
			return nil, fmt.Errorf("open page database: %w", err)
		}
		log.Printf("[app] local settings unavailable: %v", err)
	} else {
		c.db = db
		c.closers = append(c.closers, db.Close)
	}
	if c.db != nil {
		c.settings = service.NewSettingsService(c.db)
	} else {
		c.settings = service.NewSettingsService(nil)
	}

	c.client = api.New(cfg.APIURL)
	c.auth = service.NewAuthService(c.client, secret.Default(cfg.DataDir), emitter)
	c.client.SetTokenSource(c.auth.Token)
	c.client.SetUnauthorizedHandler(c.auth.HandleUnauthorized)

	c.surface = canvas.New()
	c.tools = restoreTools(c.surface, c.settings.LoadToolConfig())
	c.notebook = service.NewNotebookService(c.surface, cfg.MaxPages, emitter)
	c.calc = service.NewCalculateService(c.client, c.notebook, c.surface, emitter)

	store, err := c.openPageStore(ctx)
	if err != nil {
		c.close()
		return nil, err
	}
	if store != nil {
		c.sync = service.NewSyncService(store, c.notebook, c.surface, emitter)
	}
	return c, nil
}

// restoreTools applies a saved tool configuration through the validating
// setters, so a corrupt entry degrades to defaults field by field.
func restoreTools(surface *canvas.Surface, saved domain.ToolConfig) *canvas.ToolState {
	tools := canvas.NewToolState(surface, domain.DefaultToolConfig())
	if saved.PenWidth > 0 {
		tools.SetPenWidth(saved.PenWidth)
	}
	if saved.EraserWidth > 0 {
		tools.SetEraserWidth(saved.EraserWidth)
	}
	if saved.Color != "" {
		if err := tools.SetColor(saved.Color); err != nil {
			log.Printf("[app] saved colour: %v", err)
		}
	}
	if saved.Tool != "" {
		if err := tools.SetTool(saved.Tool); err != nil {
			log.Printf("[app] saved tool: %v", err)
		}
	}
	return tools
}

func (c *core) openPageStore(ctx context.Context) (domain.PageStore, error) {
	switch c.cfg.Store {
	case StoreNone:
		return nil, nil
	case StoreRemote:
		return c.client.Pages(), nil
	case StoreSQLite:
		return storage.NewPageStore(c.db), nil
	case StoreMySQL, StorePostgres:
		db, err := storage.Open(c.cfg.Store, c.cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open %s page store: %w", c.cfg.Store, err)
		}
		c.closers = append(c.closers, db.Close)
		return storage.NewPageStore(db), nil
	case StoreMongo:
		store, err := storage.OpenMongo(ctx, c.cfg.MongoURI, c.cfg.MongoOwner)
		if err != nil {
			return nil, fmt.Errorf("open mongo page store: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", c.cfg.Store)
}

// start restores the session, loads saved pages once the canvas is ready
// and starts the optional autosave and inbox watcher.
func (c *core) start(ctx context.Context) {
	if _, err := c.auth.Restore(ctx); err != nil {
		log.Printf("[auth] %v", err)
	}

	if c.sync != nil {
		go c.initialLoad(ctx)
		if c.cfg.Autosave != "" {
			if err := c.sync.StartAutosave(ctx, c.cfg.Autosave); err != nil {
				log.Printf("[sync] autosave disabled: %v", err)
			}
		}
	}

	if c.cfg.Inbox != "" {
		inbox, err := watcher.New(c.cfg.Inbox, c.inboxHandler(ctx))
		if err != nil {
			log.Printf("[inbox] disabled: %v", err)
		} else {
			c.inbox = inbox
			log.Printf("[inbox] watching %s", inbox.Dir())
		}
	}
}

func (c *core) initialLoad(ctx context.Context) {
	// The remote page service is per user; there is nothing to load logged out.
	if c.cfg.Store == StoreRemote && !c.auth.LoggedIn() {
		return
	}
	n, err := c.sync.LoadAll(ctx)
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		log.Printf("[sync] initial load: %v", err)
	default:
		log.Printf("[sync] loaded %d pages", n)
	}
}

// inboxHandler imports a dropped drawing into the active page and, when
// configured, submits it.
func (c *core) inboxHandler(ctx context.Context) watcher.ImageHandler {
	return func(path string, data []byte) {
		snap, err := canvas.SnapshotFromPNG(data)
		if err != nil {
			log.Printf("[inbox] %s: %v", path, err)
			return
		}
		if err := c.surface.WaitReady(ctx); err != nil {
			return
		}
		if err := c.notebook.ImportSnapshot(ctx, snap); err != nil {
			log.Printf("[inbox] %s: %v", path, err)
			return
		}
		log.Printf("[inbox] imported %s into page %s", path, c.notebook.ActivePageID())
		if !c.cfg.InboxSubmit {
			return
		}
		if _, err := c.calc.Submit(ctx); err != nil {
			log.Printf("[inbox] submit %s: %v", path, err)
		}
	}
}

func (c *core) saveTools() {
	if err := c.settings.SaveToolConfig(c.tools.Config()); err != nil {
		log.Printf("[settings] save tool config: %v", err)
	}
}

func (c *core) close() {
	if c.sync != nil {
		c.sync.Stop()
	}
	c.drain(drainTimeout)
	if c.inbox != nil {
		c.inbox.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("[app] close: %v", err)
		}
	}
	c.closers = nil
}

// drainTimeout bounds how long shutdown waits for in-flight work.
const drainTimeout = 5 * time.Second

// drain waits for in-flight submissions and saves so they do not hit
// closed stores.
func (c *core) drain(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if c.calc != nil {
		if err := c.calc.Wait(ctx); err != nil {
			log.Printf("[app] close: submissions still running: %v", err)
		}
	}
	if c.sync != nil {
		if err := c.sync.Wait(ctx); err != nil {
			log.Printf("[app] close: save still running: %v", err)
		}
	}
}
