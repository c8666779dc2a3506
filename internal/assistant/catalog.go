package assistant

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk persona configuration.
type Catalog struct {
	Assistants []Spec `yaml:"assistants"`
}

// Defaults returns the built-in persona set used when no catalog file is
// configured.
func Defaults() []Spec {
	return []Spec{
		{
			Name:        "dory",
			Description: "Forgets everything between turns; answers each message in isolation.",
			Mode:        ModeStateless,
		},
		{
			Name:        "parrot",
			Description: "Replays the entire conversation history on every turn.",
			Mode:        ModeHistory,
		},
		{
			Name:        "memento",
			Description: "Remembers only the most recent exchanges.",
			Mode:        ModeWindow,
			WindowSize:  DefaultWindowSize,
		},
		{
			Name:        "finch",
			Description: "Carries a rolling summary of the conversation instead of raw history.",
			Mode:        ModeSummary,
		},
		{
			Name:        "elephant",
			Description: "Recalls the past messages most relevant to the current question.",
			Mode:        ModeRetrieval,
			RetrievalK:  DefaultRetrievalK,
		},
		{
			Name:        "ant",
			Description: "Combines relevant recall with a recent window of exchanges.",
			Mode:        ModeCombined,
			WindowSize:  DefaultWindowSize,
			RetrievalK:  DefaultRetrievalK,
		},
		{
			Name:        "turing",
			Description: "Delegates conversation state to a hosted assistant thread.",
			Mode:        ModeHosted,
		},
	}
}

// LoadFile reads a persona catalog from a YAML file.
func LoadFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assistants file: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse assistants file: %w", err)
	}
	if len(catalog.Assistants) == 0 {
		return nil, fmt.Errorf("assistants file %s declares no assistants", path)
	}
	return catalog.Assistants, nil
}

// BuildRegistry constructs strategies for every spec and fills a registry
// with them. Any invalid spec fails the whole build so a bad catalog never
// half-loads.
func BuildRegistry(specs []Spec, deps Deps) (*Registry, error) {
	responders := make([]Responder, 0, len(specs))
	for _, spec := range specs {
		strategy, err := New(spec, deps)
		if err != nil {
			return nil, err
		}
		responders = append(responders, strategy)
	}

	registry := NewRegistry()
	if err := registry.ReplaceAll(responders); err != nil {
		return nil, err
	}
	return registry, nil
}

// Watch reloads the catalog file into the registry when it changes on disk.
// Editors replace files rather than writing in place, so the watch is on the
// containing directory with a filename filter, debounced to collapse change
// bursts into one reload.
func Watch(path string, registry *Registry, deps Deps) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	filename := filepath.Base(path)

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filename {
					continue
				}
				if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					reload(path, registry, deps)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("assistants file watcher error", "error", err)
			}
		}
	}()

	slog.Info("watching assistants file for changes", "path", path)
	return watcher, nil
}

// reload applies the catalog file to the registry, keeping the old set when
// the new file is invalid.
func reload(path string, registry *Registry, deps Deps) {
	specs, err := LoadFile(path)
	if err != nil {
		slog.Error("assistants reload failed, keeping current set", "path", path, "error", err)
		return
	}

	responders := make([]Responder, 0, len(specs))
	for _, spec := range specs {
		strategy, err := New(spec, deps)
		if err != nil {
			slog.Error("assistants reload failed, keeping current set", "path", path, "error", err)
			return
		}
		responders = append(responders, strategy)
	}

	if err := registry.ReplaceAll(responders); err != nil {
		slog.Error("assistants reload failed, keeping current set", "path", path, "error", err)
		return
	}
	slog.Info("assistants reloaded", "path", path, "count", len(responders))
}
