package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"
)

const (
	AppName         = "Foyue"
	AppTagline      = "Buddhist lecture player"
	AppDescription  = "A terminal player for streamed Buddhist audio lectures"
	AppProjectURL   = "https://github.com/lianbang999-crypto/foyue"
	AppProjectShort = "github.com/lianbang999-crypto/foyue"

	ConfigDir      = ".config/foyue"
	ConfigFileName = "config.yml"
	StateFileName  = "state.json"

	DefaultCatalogURL = "https://foyue.app/catalog.json"
	DefaultAPIBaseURL = "https://foyue.app/api"
)

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/lianbang999-crypto/foyue/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Theme struct {
	Background       string `yaml:"background"`
	Foreground       string `yaml:"foreground"`
	Borders          string `yaml:"borders"`
	Highlight        string `yaml:"highlight"`
	HeaderBackground string `yaml:"header_background"`
	ListHeaderBg     string `yaml:"list_header_background"`
	ListHeaderFg     string `yaml:"list_header_foreground"`
	HelpBackground   string `yaml:"help_background"`
	HelpForeground   string `yaml:"help_foreground"`
	HelpHotkey       string `yaml:"help_hotkey"`
	NoticeForeground string `yaml:"notice_foreground"`
	ModalBackground  string `yaml:"modal_background"`
}

type Config struct {
	Language       string   `yaml:"language"`
	DarkTheme      bool     `yaml:"dark_theme"`
	CatalogURL     string   `yaml:"catalog_url"`
	APIBaseURL     string   `yaml:"api_base_url"`
	DisablePreload bool     `yaml:"disable_preload"`
	Favorites      []string `yaml:"favorites"`
	Theme          Theme    `yaml:"theme"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDir, ConfigFileName), nil
}

// GetStatePath returns the path of the playback state file, kept alongside
// the config.
func GetStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDir, StateFileName), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.CatalogURL == "" {
		cfg.CatalogURL = DefaultCatalogURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}

	return cfg, nil
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Language:   "zh",
		DarkTheme:  true,
		CatalogURL: DefaultCatalogURL,
		APIBaseURL: DefaultAPIBaseURL,
		Favorites:  []string{},
		Theme: Theme{
			Background:       "#1a1b25",
			Foreground:       "#a3aacb",
			Borders:          "#40445b",
			Highlight:        "#d9a441",
			HeaderBackground: "#473533",
			ListHeaderBg:     "#3a3d4f",
			ListHeaderFg:     "#c8d0e8",
			HelpBackground:   "#322f45",
			HelpForeground:   "#9aa3c6",
			HelpHotkey:       "#d9a441",
			NoticeForeground: "#e06c75",
			ModalBackground:  "#282a36",
		},
	}
}

func (c *Config) IsFavorite(seriesID string) bool {
	for _, id := range c.Favorites {
		if id == seriesID {
			return true
		}
	}
	return false
}

func (c *Config) ToggleFavorite(seriesID string) {
	for i, id := range c.Favorites {
		if id == seriesID {
			c.Favorites = append(c.Favorites[:i], c.Favorites[i+1:]...)
			return
		}
	}
	c.Favorites = append(c.Favorites, seriesID)
}

// CleanupFavorites drops favorites that no longer exist in the catalog.
func (c *Config) CleanupFavorites(validSeriesIDs map[string]bool) {
	cleaned := []string{}
	for _, id := range c.Favorites {
		if validSeriesIDs[id] {
			cleaned = append(cleaned, id)
		}
	}
	c.Favorites = cleaned
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
