package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SnapshotStore persists raw HTML snapshots under
// {dir}/archive_storage/raw_html/YYYY/MM/DD/.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore builds a store rooted at dir. An empty dir disables
// snapshotting and returns nil.
func NewSnapshotStore(dir string) *SnapshotStore {
	if dir == "" {
		return nil
	}
	return &SnapshotStore{dir: dir}
}

// Save writes html fetched from pageURL and returns the snapshot path.
func (s *SnapshotStore) Save(pageURL, html string) (string, error) {
	now := time.Now().UTC()
	day := filepath.Join(s.dir, "archive_storage", "raw_html",
		fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), fmt.Sprintf("%02d", now.Day()))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	sum := sha256.Sum256([]byte(pageURL))
	name := fmt.Sprintf("%d_%s_%s.html", now.Unix(), hex.EncodeToString(sum[:6]), uuid.NewString())
	path := filepath.Join(day, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
