package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/sightline/pkg/scene"
)

// FileStore keeps one JSON file per scene in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// fileRecord is the on-disk form of a Record. The scene is kept as raw
// JSON and decoded through the scene schema on read.
type fileRecord struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
	Scene       json.RawMessage `json:"scene"`
}

// NewFileStore creates a file-based store.
// If baseDir is empty, defaults to ~/.config/sightline/scenes/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".config", "sightline", "scenes")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create scene dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) scenePath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

func (s *FileStore) Put(ctx context.Context, sc *scene.Scene) (*Record, error) {
	rec, err := NewRecord(sc)
	if err != nil {
		return nil, err
	}
	doc, err := encodeScene(sc)
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	data, err := json.MarshalIndent(fileRecord{
		ID:          rec.ID,
		Name:        rec.Name,
		Fingerprint: rec.Fingerprint,
		CreatedAt:   rec.CreatedAt,
		Scene:       doc,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scene record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.scenePath(rec.ID), data, 0600); err != nil {
		return nil, fmt.Errorf("write scene file: %w", err)
	}
	return rec, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, notFound(id)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(s.scenePath(id))
}

func (s *FileStore) read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(strings.TrimSuffix(filepath.Base(path), ".json"))
		}
		return nil, fmt.Errorf("read scene file: %w", err)
	}
	var fr fileRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("parse scene record: %w", err)
	}
	sc, err := decodeScene(fr.Scene)
	if err != nil {
		return nil, fmt.Errorf("decode stored scene %s: %w", fr.ID, err)
	}
	return &Record{
		ID:          fr.ID,
		Name:        fr.Name,
		Fingerprint: fr.Fingerprint,
		CreatedAt:   fr.CreatedAt,
		Scene:       sc,
	}, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return notFound(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.scenePath(id)); err != nil {
		if os.IsNotExist(err) {
			return notFound(id)
		}
		return fmt.Errorf("remove scene file: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read scene dir: %w", err)
	}
	var out []*Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		rec, err := s.read(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			// Skip files that are not scene records.
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the base directory for scene files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
