// Package store persists scenes for the HTTP service.
//
// Stored scenes are addressed by a random UUID assigned on Put. Three
// backends implement [Store]:
//   - MemoryStore: process-local, for tests and single-instance use
//   - FileStore: one JSON document per scene below a directory
//   - MongoStore: a MongoDB collection shared between service instances
//
// Scenes are kept in their JSON form, so every backend round-trips
// coordinates exactly.
package store

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/scene"
)

// Record is a stored scene.
type Record struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Fingerprint string       `json:"fingerprint"`
	CreatedAt   time.Time    `json:"created_at"`
	Scene       *scene.Scene `json:"scene"`
}

// Store is a scene repository.
type Store interface {
	// Put stores a validated scene under a new id.
	Put(ctx context.Context, sc *scene.Scene) (*Record, error)

	// Get returns a stored scene, or SCENE_NOT_FOUND.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes a stored scene, or returns SCENE_NOT_FOUND.
	Delete(ctx context.Context, id string) error

	// List returns every stored scene, oldest first.
	List(ctx context.Context) ([]*Record, error)

	Close() error
}

// NewRecord validates sc and wraps it in a record with a fresh id.
func NewRecord(sc *scene.Scene) (*Record, error) {
	if sc == nil {
		return nil, errors.New(errors.ErrCodeInvalidScene, "scene is required")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &Record{
		ID:          uuid.NewString(),
		Name:        sc.Name,
		Fingerprint: sc.Fingerprint(),
		CreatedAt:   time.Now().UTC(),
		Scene:       sc,
	}, nil
}

// ValidateID rejects ids that are not UUIDs. Backends call it before using
// an id as a file name or query key.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "invalid scene id %q", id)
	}
	return nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeSceneNotFound, "scene %s not found", id)
}

func encodeScene(sc *scene.Scene) ([]byte, error) {
	var buf bytes.Buffer
	if err := scene.Encode(&buf, sc, scene.FormatJSON); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeScene(data []byte) (*scene.Scene, error) {
	return scene.Decode(data, scene.FormatJSON)
}

func sortRecords(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
