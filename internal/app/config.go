package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"inkquiry/internal/api"
	"inkquiry/internal/service"
)

// Page store backends selectable with INKQUIRY_STORE.
const (
	StoreRemote   = "remote"
	StoreSQLite   = "sqlite"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreNone     = "none"
)

// Config is the runtime configuration, read from the environment.
type Config struct {
	APIURL   string
	MaxPages int
	DataDir  string

	Store      string
	StoreDSN   string
	MongoURI   string
	MongoOwner string

	// Autosave is a cron spec ("@every 1m"); empty disables autosave.
	Autosave string

	// Inbox is a directory watched for PNG drawings; empty disables it.
	Inbox       string
	InboxSubmit bool

	// Canvas size used when no view reports one (standalone MCP).
	CanvasWidth  int
	CanvasHeight int
}

// DefaultConfig returns the configuration used when no variables are set.
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		APIURL:       api.DefaultBaseURL,
		MaxPages:     service.DefaultMaxPages,
		DataDir:      filepath.Join(homeDir, ".local", "share", "inkquiry"),
		Store:        StoreRemote,
		MongoURI:     "mongodb://localhost:27017/inkquiry",
		MongoOwner:   "local",
		CanvasWidth:  1280,
		CanvasHeight: 800,
	}
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(os.Getenv)
}

func loadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	// VITE_API_URL is what the web client reads; honour it as a fallback.
	if v := firstNonEmpty(getenv("INKQUIRY_API_URL"), getenv("VITE_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := getenv("INKQUIRY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("INKQUIRY_STORE"); v != "" {
		cfg.Store = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.StoreDSN = getenv("INKQUIRY_STORE_DSN")
	if v := getenv("INKQUIRY_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := getenv("INKQUIRY_MONGO_OWNER"); v != "" {
		cfg.MongoOwner = v
	}
	cfg.Autosave = getenv("INKQUIRY_AUTOSAVE")
	cfg.Inbox = getenv("INKQUIRY_INBOX")

	var err error
	if cfg.MaxPages, err = intEnv(getenv, "INKQUIRY_MAX_PAGES", cfg.MaxPages); err != nil {
		return cfg, err
	}
	if cfg.CanvasWidth, err = intEnv(getenv, "INKQUIRY_CANVAS_WIDTH", cfg.CanvasWidth); err != nil {
		return cfg, err
	}
	if cfg.CanvasHeight, err = intEnv(getenv, "INKQUIRY_CANVAS_HEIGHT", cfg.CanvasHeight); err != nil {
		return cfg, err
	}
	if v := getenv("INKQUIRY_INBOX_SUBMIT"); v != "" {
		if cfg.InboxSubmit, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("INKQUIRY_INBOX_SUBMIT: %w", err)
		}
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.MaxPages < 1 {
		return fmt.Errorf("INKQUIRY_MAX_PAGES must be at least 1, got %d", c.MaxPages)
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.CanvasWidth, c.CanvasHeight)
	}
	switch c.Store {
	case StoreRemote, StoreSQLite, StoreNone, StoreMongo:
	case StoreMySQL, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("INKQUIRY_STORE=%s needs INKQUIRY_STORE_DSN", c.Store)
		}
	default:
		return fmt.Errorf("unknown INKQUIRY_STORE %q", c.Store)
	}
	return nil
}

// DBPath is the local SQLite file holding settings and, with the sqlite
// store, the pages.
func (c Config) DBPath() string {
	if c.Store == StoreSQLite && c.StoreDSN != "" {
		return c.StoreDSN
	}
	return filepath.Join(c.DataDir, "inkquiry.db")
}

func intEnv(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
