package permissions

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

type snapshotEntry struct {
	UserID     UserID     `yaml:"user_id"`
	Permission Permission `yaml:"permission"`
}

type snapshotFile struct {
	Permissions []snapshotEntry `yaml:"permissions"`
}

// WriteSnapshotFile saves m as YAML, sorted by user id so backups diff cleanly.
func WriteSnapshotFile(path string, m Map) error {
	ids := make([]UserID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	doc := snapshotFile{Permissions: make([]snapshotEntry, 0, len(ids))}
	for _, id := range ids {
		doc.Permissions = append(doc.Permissions, snapshotEntry{UserID: id, Permission: m[id]})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ReadSnapshotFile loads a file written by WriteSnapshotFile. A user listed
// twice is an error rather than a silent overwrite.
func ReadSnapshotFile(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc snapshotFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	m := make(Map, len(doc.Permissions))
	for _, e := range doc.Permissions {
		if _, dup := m[e.UserID]; dup {
			return nil, fmt.Errorf("parse snapshot %s: user %d listed twice", path, e.UserID)
		}
		m[e.UserID] = e.Permission
	}
	return m, nil
}
