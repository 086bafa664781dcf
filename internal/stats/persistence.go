package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// snapshotVersion is bumped when the schema changes. Load can use it to
	// apply migrations in the future.
	snapshotVersion = 1

	snapshotFileName = "stats.json"
	appDirName       = "liveclass"
)

// Snapshot is the persistent aggregate activity data for the session engine.
// It is loaded from and saved to ~/.local/state/liveclass/stats.json
// (respecting XDG_STATE_HOME).
type Snapshot struct {
	Version int `json:"version"`

	// Aggregate counters
	TotalEvents      int `json:"totalEvents"`
	TotalSubmissions int `json:"totalSubmissions"`
	TotalHandRaises  int `json:"totalHandRaises"`

	// Per-dimension breakdowns
	EventsPerType      map[string]int `json:"eventsPerType"`
	EventsPerTeam      map[int]int    `json:"eventsPerTeam"`
	SubmissionsPerTeam map[int]int    `json:"submissionsPerTeam"`

	LastUpdated time.Time `json:"lastUpdated"`
}

// Store handles loading and saving a Snapshot to disk.
type Store struct {
	dir string // directory containing stats.json
}

// NewStore creates a Store that reads/writes the snapshot in the given
// directory. The directory is created (with parents) on the first Save if it
// does not exist. Pass an empty string to use the default XDG state path.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultStatsDir()
	}
	return &Store{dir: dir}
}

// Path returns the full path to the snapshot file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, snapshotFileName)
}

// Load reads the snapshot from disk. If the file does not exist, a zero-value
// Snapshot with initialized maps and the current version is returned.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return newSnapshot(), nil
		}
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing stats: %w", err)
	}
	snap.initMaps()

	return &snap, nil
}

// Save writes the snapshot to disk using an atomic temp-file-then-rename
// pattern. The directory is created if it does not already exist.
func (s *Store) Save(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating stats dir: %w", err)
	}

	snap.Version = snapshotVersion
	snap.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".stats-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming stats file: %w", err)
	}
	committed = true

	return nil
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Version:            snapshotVersion,
		EventsPerType:      make(map[string]int),
		EventsPerTeam:      make(map[int]int),
		SubmissionsPerTeam: make(map[int]int),
	}
}

// initMaps ensures all map fields are non-nil after deserialization.
func (snap *Snapshot) initMaps() {
	if snap.EventsPerType == nil {
		snap.EventsPerType = make(map[string]int)
	}
	if snap.EventsPerTeam == nil {
		snap.EventsPerTeam = make(map[int]int)
	}
	if snap.SubmissionsPerTeam == nil {
		snap.SubmissionsPerTeam = make(map[int]int)
	}
}

// clone returns a deep copy of the snapshot with all maps duplicated.
func (snap *Snapshot) clone() *Snapshot {
	cp := *snap
	cp.EventsPerType = make(map[string]int, len(snap.EventsPerType))
	for k, v := range snap.EventsPerType {
		cp.EventsPerType[k] = v
	}
	cp.EventsPerTeam = make(map[int]int, len(snap.EventsPerTeam))
	for k, v := range snap.EventsPerTeam {
		cp.EventsPerTeam[k] = v
	}
	cp.SubmissionsPerTeam = make(map[int]int, len(snap.SubmissionsPerTeam))
	for k, v := range snap.SubmissionsPerTeam {
		cp.SubmissionsPerTeam[k] = v
	}
	return &cp
}

// defaultStatsDir returns ~/.local/state/liveclass, respecting
// XDG_STATE_HOME if set.
func defaultStatsDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
