package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/evdnx/voltrail/config"
)

// fileDocument is the operator-edited YAML file.
type fileDocument struct {
	Config    config.Snapshot `yaml:"config"`
	Blacklist []string        `yaml:"blacklist"`
}

// snapshotKeys must all be present under config; a zero value is only
// accepted when the operator wrote it.
var snapshotKeys = []string{
	"enabled", "strategy", "capital_fraction", "min_volume", "interval_seconds", "max_candidates",
	"volatility_window_hours", "max_open_positions", "profit_target_percent", "test_mode",
}

// missingKeys lists the snapshot keys absent from the config mapping.
func missingKeys(data []byte) ([]string, error) {
	var raw struct {
		Config map[string]yaml.Node `yaml:"config"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range snapshotKeys {
		if _, ok := raw.Config[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

// fileState is what the bot writes back, kept apart from the operator file
// so edits never race with the loop.
type fileState struct {
	Status string   `yaml:"status"`
	Log    []string `yaml:"log"`
}

// File is a local Store for running without a spreadsheet. The config file
// is re-read on every call; status and log go to a sibling file.
type File struct {
	mu        sync.Mutex
	path      string
	statePath string
	state     fileState
}

func NewFile(path string) *File {
	return &File{path: path, statePath: path + ".state.yml"}
}

// StatePath is where status and log lines are written.
func (f *File) StatePath() string { return f.statePath }

func (f *File) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(f.path)
	if err != nil {
		return doc, fmt.Errorf("%w: read %s: %v", ErrStore, f.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: parse %s: %v", config.ErrInvalidConfig, f.path, err)
	}
	missing, err := missingKeys(data)
	if err != nil {
		return doc, fmt.Errorf("%w: parse %s: %v", config.ErrInvalidConfig, f.path, err)
	}
	if len(missing) > 0 {
		return doc, fmt.Errorf("%w: %s: missing config keys %s", config.ErrInvalidConfig, f.path,
			strings.Join(missing, ", "))
	}
	return doc, nil
}

func (f *File) ReadConfig(context.Context) (config.Snapshot, error) {
	doc, err := f.read()
	if err != nil {
		return config.Snapshot{}, err
	}
	if err := doc.Config.Validate(); err != nil {
		return config.Snapshot{}, err
	}
	return doc.Config, nil
}

func (f *File) ReadBlacklist(context.Context) (map[string]struct{}, error) {
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return normalizeBlacklist(doc.Blacklist), nil
}

func (f *File) SetStatus(_ context.Context, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Status = status
	return f.flush()
}

func (f *File) AppendLog(_ context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Log = append(f.state.Log, line)
	return f.flush()
}

func (f *File) ClearLog(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Log = nil
	return f.flush()
}

// flush must be called with mu held.
func (f *File) flush() error {
	data, err := yaml.Marshal(&f.state)
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", ErrStore, err)
	}
	if err := os.WriteFile(f.statePath, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStore, f.statePath, err)
	}
	return nil
}
