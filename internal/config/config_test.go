package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Language != "zh" {
		t.Errorf("DefaultConfig().Language = %q, want %q", cfg.Language, "zh")
	}

	if !cfg.DarkTheme {
		t.Error("DefaultConfig().DarkTheme = false, want true")
	}

	if cfg.CatalogURL != DefaultCatalogURL {
		t.Errorf("DefaultConfig().CatalogURL = %q, want %q", cfg.CatalogURL, DefaultCatalogURL)
	}

	if cfg.DisablePreload {
		t.Error("DefaultConfig().DisablePreload = true, want false")
	}
}

func TestConfigSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	testCfg := &Config{
		Language:       "en",
		DarkTheme:      false,
		CatalogURL:     "https://example.com/catalog.json",
		APIBaseURL:     "https://example.com/api",
		DisablePreload: true,
		Favorites:      []string{"heart-sutra"},
	}

	if err := testCfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ConfigDir, ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatalf("Config file was not created at %s", configPath)
	}

	loadedCfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loadedCfg.Language != testCfg.Language {
		t.Errorf("Load().Language = %q, want %q", loadedCfg.Language, testCfg.Language)
	}
	if loadedCfg.CatalogURL != testCfg.CatalogURL {
		t.Errorf("Load().CatalogURL = %q, want %q", loadedCfg.CatalogURL, testCfg.CatalogURL)
	}
	if !loadedCfg.DisablePreload {
		t.Error("Load().DisablePreload = false, want true")
	}
	if len(loadedCfg.Favorites) != 1 || loadedCfg.Favorites[0] != "heart-sutra" {
		t.Errorf("Load().Favorites = %v", loadedCfg.Favorites)
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Logf("Load() error (expected): %v", err)
	}

	if cfg.Language != "zh" {
		t.Errorf("Load() with non-existent file returned Language = %q, want %q", cfg.Language, "zh")
	}
}

func TestLoadFillsEmptyURLs(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ConfigFileName), []byte("language: en\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CatalogURL != DefaultCatalogURL {
		t.Errorf("empty catalog_url not defaulted: %q", cfg.CatalogURL)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("empty api_base_url not defaulted: %q", cfg.APIBaseURL)
	}
}

func TestFavorites(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.IsFavorite("heart-sutra") {
		t.Error("IsFavorite() true for empty favorites")
	}

	cfg.ToggleFavorite("heart-sutra")
	if !cfg.IsFavorite("heart-sutra") {
		t.Error("ToggleFavorite() did not add the series")
	}

	cfg.ToggleFavorite("heart-sutra")
	if cfg.IsFavorite("heart-sutra") {
		t.Error("ToggleFavorite() did not remove the series")
	}
}

func TestCleanupFavorites(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Favorites = []string{"heart-sutra", "gone-series", "platform-sutra"}

	cfg.CleanupFavorites(map[string]bool{
		"heart-sutra":    true,
		"platform-sutra": true,
	})

	if len(cfg.Favorites) != 2 {
		t.Fatalf("CleanupFavorites() left %d entries, want 2", len(cfg.Favorites))
	}
	for _, id := range cfg.Favorites {
		if id == "gone-series" {
			t.Error("CleanupFavorites() kept a stale favorite")
		}
	}
}
