package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot schema versioning for forward-compatibility.
const snapshotVersion = 1

type snapshot struct {
	Version int    `json:"version"`
	Jobs    []*Job `json:"jobs"`
	Created int64  `json:"created_unix"`
}

// Save writes the registry to path atomically. A pipe child restores it so
// that it starts with the same job table as the shell that spawned it.
func (r *Registry) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	r.mu.RLock()
	s := snapshot{
		Version: snapshotVersion,
		Created: r.now().Unix(),
		Jobs:    make([]*Job, 0, len(r.jobs)),
	}
	for _, j := range r.jobs {
		cp := *j
		s.Jobs = append(s.Jobs, &cp)
	}
	r.mu.RUnlock()

	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load replaces the registry contents with the snapshot at path.
func (r *Registry) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var s snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode jobs snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("unsupported jobs snapshot version %d", s.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = r.jobs[:0]
	for _, j := range s.Jobs {
		if j != nil {
			r.jobs = append(r.jobs, j)
		}
	}
	return nil
}
