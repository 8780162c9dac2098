package service

import (
	"encoding/json"
	"log"
	"strconv"

	"inkquiry/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Local Settings
// ─────────────────────────────────────────────────────────────
//
// Window size and the last tool configuration survive restarts.
// Stored as key/value rows in the local database's app_settings table.

// SettingsStore is the key/value table behind SettingsService.
type SettingsStore interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
}

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

const (
	settingWindowWidth  = "window_width"
	settingWindowHeight = "window_height"
	settingToolConfig   = "tool_config"
	defaultWindowWidth  = 1280
	defaultWindowHeight = 800
	minWindowWidth      = 800
	minWindowHeight     = 600
)

// SettingsService persists window size and tool configuration between sessions.
type SettingsService struct {
	store SettingsStore
}

// NewSettingsService creates a SettingsService. A nil store yields defaults
// and drops writes.
func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// LoadWindowSize returns the saved window dimensions, or defaults.
func (s *SettingsService) LoadWindowSize() WindowSize {
	w := s.intSetting(settingWindowWidth, defaultWindowWidth)
	h := s.intSetting(settingWindowHeight, defaultWindowHeight)
	if w < minWindowWidth {
		w = defaultWindowWidth
	}
	if h < minWindowHeight {
		h = defaultWindowHeight
	}
	return WindowSize{Width: w, Height: h}
}

// SaveWindowSize persists the current window dimensions.
func (s *SettingsService) SaveWindowSize(width, height int) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SetSetting(settingWindowWidth, strconv.Itoa(width)); err != nil {
		return err
	}
	return s.store.SetSetting(settingWindowHeight, strconv.Itoa(height))
}

// LoadToolConfig returns the last saved tool configuration, or the default.
func (s *SettingsService) LoadToolConfig() domain.ToolConfig {
	cfg := domain.DefaultToolConfig()
	if s.store == nil {
		return cfg
	}
	raw, ok, err := s.store.GetSetting(settingToolConfig)
	if err != nil {
		log.Printf("[settings] load tool config: %v", err)
		return cfg
	}
	if !ok {
		return cfg
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		log.Printf("[settings] decode tool config: %v", err)
		return domain.DefaultToolConfig()
	}
	return cfg
}

// SaveToolConfig persists cfg.
func (s *SettingsService) SaveToolConfig(cfg domain.ToolConfig) error {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.store.SetSetting(settingToolConfig, string(data))
}

func (s *SettingsService) intSetting(key string, def int) int {
	if s.store == nil {
		return def
	}
	raw, ok, err := s.store.GetSetting(key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
