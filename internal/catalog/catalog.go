package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/threadloom/threadloom/internal/logging"
)

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID            string `json:"id" yaml:"id"`
	DisplayName   string `json:"displayName" yaml:"displayName"`
	ContextWindow int    `json:"contextWindow" yaml:"contextWindow"`
	Active        *bool  `json:"active,omitempty" yaml:"active,omitempty"` // nil = active
}

// IsActive returns whether the model is active (defaults to true)
func (m *ModelInfo) IsActive() bool {
	if m.Active == nil {
		return true
	}
	return *m.Active
}

// ModelAlias maps a user-facing alias to a concrete model ID, scoped to one
// provider. Alias resolution must be deterministic and total: every alias
// maps to exactly one model, unknown names pass through unchanged.
type ModelAlias struct {
	Provider string `yaml:"provider" json:"provider"`
	Alias    string `yaml:"alias" json:"alias"`
	ModelID  string `yaml:"modelId" json:"modelId"`
}

// Config is the models.yaml structure.
type Config struct {
	Version   string                 `yaml:"version"`
	UpdatedAt string                 `yaml:"updatedAt"`
	Defaults  map[string]string      `yaml:"defaults,omitempty"` // provider → default model ID
	Aliases   []ModelAlias           `yaml:"aliases,omitempty"`
	Providers map[string][]ModelInfo `yaml:"providers"`
}

// Catalog is a read-mostly view over models.yaml, optionally reloaded when
// the file changes on disk.
type Catalog struct {
	path string

	mu      sync.RWMutex
	config  *Config
	watcher *fsnotify.Watcher
}

// Load reads models.yaml from dataDir. A missing or unparsable file yields an
// empty catalog; adapters then fall back to pass-through model names.
func Load(dataDir string) *Catalog {
	c := &Catalog{path: filepath.Join(dataDir, "models.yaml")}
	c.reload()
	return c
}

func (c *Catalog) reload() {
	cfg := c.readFile()
	c.mu.Lock()
	c.config = cfg
	c.mu.Unlock()
}

func (c *Catalog) readFile() *Config {
	empty := &Config{
		Version:   "1.0",
		UpdatedAt: time.Now().Format(time.RFC3339),
		Providers: make(map[string][]ModelInfo),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return empty
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logging.Warnf("models.yaml parse failed, using empty catalog: %v", err)
		return empty
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string][]ModelInfo)
	}
	return &cfg
}

// Resolve maps an alias to its concrete model ID for the given provider.
// Unrecognized names pass through unchanged.
func (c *Catalog) Resolve(provider, model string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.config.Aliases {
		if a.Provider == provider && a.Alias == model {
			return a.ModelID
		}
	}
	return model
}

// DefaultModel returns the configured default model for a provider, falling
// back to the first active model in its list, or "" if none configured.
func (c *Catalog) DefaultModel(provider string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.config.Defaults[provider]; ok && id != "" {
		return id
	}
	for _, m := range c.config.Providers[provider] {
		if m.IsActive() {
			return m.ID
		}
	}
	return ""
}

// Models returns the model list for a provider.
func (c *Catalog) Models(provider string) []ModelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.Providers[provider]
}

// Watch starts watching the catalog file's directory and reloads on change.
// Editors may write several times in quick succession, so reloads are
// debounced.
func (c *Catalog) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(c.path), err)
	}
	c.watcher = watcher

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(c.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if debounce != nil {
						debounce.Stop()
					}
					debounce = time.AfterFunc(100*time.Millisecond, func() {
						c.reload()
						logging.Infof("models.yaml reloaded")
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warnf("models.yaml watcher error: %v", err)
			}
		}
	}()

	return nil
}

// Close stops the file watcher if one is running.
func (c *Catalog) Close() {
	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
}
