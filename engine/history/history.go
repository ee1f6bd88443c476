package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/prism/engine/benchmark"
	"github.com/spaghettifunk/prism/engine/core"
)

const (
	// Key of the history list inside the store file.
	storeKey          = "benchmark-history"
	DefaultMaxEntries = 10
)

// Host describes the machine a result was recorded on.
type Host struct {
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	CPUs      int    `json:"cpus"`
	GoVersion string `json:"goVersion"`
}

func CurrentHost() Host {
	return Host{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}

/** @brief A persisted benchmark result. */
type Entry struct {
	benchmark.BenchmarkResult
	SavedAt time.Time `json:"savedAt"`
	Host    Host      `json:"host"`
}

/**
 * @brief Keeps the most recent benchmark results in a JSON file. Storage
 * failures never reach the caller: they are logged and the operation
 * degrades to a no-op (or an empty list).
 */
type Store struct {
	path       string
	maxEntries int
	now        core.TimeSource

	mu sync.Mutex
}

func NewStore(path string, maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{path: path, maxEntries: maxEntries, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

// Append records a result, dropping the oldest entries beyond the cap.
func (s *Store) Append(result *benchmark.BenchmarkResult) {
	if result == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		core.LogWarn("history at '%s' is unreadable, starting a new one: %s", s.path, err.Error())
		doc = map[string]json.RawMessage{}
	}
	entries := s.entries(doc)
	entries = append(entries, Entry{
		BenchmarkResult: *result,
		SavedAt:         s.now().UTC(),
		Host:            CurrentHost(),
	})
	if len(entries) > s.maxEntries {
		entries = entries[len(entries)-s.maxEntries:]
	}
	if err := s.write(doc, entries); err != nil {
		core.LogWarn("failed to save benchmark history: %s", err.Error())
	}
}

// List returns the stored entries, oldest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		core.LogWarn("failed to read benchmark history: %s", err.Error())
		return []Entry{}
	}
	return s.entries(doc)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		doc = map[string]json.RawMessage{}
	}
	if err := s.write(doc, nil); err != nil {
		core.LogWarn("failed to clear benchmark history: %s", err.Error())
	}
}

// read loads the whole store document. A missing file is an empty document.
func (s *Store) read() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read '%s'", s.path)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode '%s'", s.path)
	}
	return doc, nil
}

func (s *Store) entries(doc map[string]json.RawMessage) []Entry {
	raw, ok := doc[storeKey]
	if !ok {
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		core.LogWarn("discarding malformed benchmark history: %s", err.Error())
		return []Entry{}
	}
	return entries
}

// write stores the entries under the history key, keeping other keys intact.
func (s *Store) write(doc map[string]json.RawMessage, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "failed to encode history")
	}
	doc[storeKey] = raw

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode history file")
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create '%s'", dir)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write '%s'", tmp)
	}
	return errors.Wrap(os.Rename(tmp, s.path), "failed to replace history file")
}
