// Package jsonfile provides a flat-file dedup store: a JSON array of the
// descriptions that have been posted.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"natrail-bot/internal/domain/entity"
	"natrail-bot/internal/repository"
)

// SeenSet implements repository.DisruptionRepository keyed on description.
// Records seen but not yet posted live in memory; the file only ever holds
// posted descriptions, rewritten atomically on each MarkPosted.
type SeenSet struct {
	path string

	mu      sync.Mutex
	posted  map[string]struct{}
	pending []*entity.Disruption
	nextID  int64
}

// Open loads path, treating a missing file as an empty set.
func Open(path string) (*SeenSet, error) {
	s := &SeenSet{path: path, posted: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, &entity.PersistenceError{Op: "Open: ReadFile", Err: err}
	}
	if len(data) == 0 {
		return s, nil
	}

	var descriptions []string
	if err := json.Unmarshal(data, &descriptions); err != nil {
		return nil, &entity.PersistenceError{Op: "Open: Unmarshal", Err: fmt.Errorf("%s: %w", path, err)}
	}
	for _, d := range descriptions {
		s.posted[d] = struct{}{}
	}
	s.nextID = int64(len(descriptions))
	return s, nil
}

var _ repository.DisruptionRepository = (*SeenSet)(nil)

func (s *SeenSet) IsNew(_ context.Context, d *entity.Disruption) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.knownLocked(d.Description), nil
}

func (s *SeenSet) RecordSeen(_ context.Context, d *entity.Disruption) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.knownLocked(d.Description) {
		return false, nil
	}
	s.nextID++
	rec := *d
	rec.ID = s.nextID
	rec.Posted = false
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now()
	}
	s.pending = append(s.pending, &rec)
	d.ID = rec.ID
	return true, nil
}

func (s *SeenSet) Unposted(_ context.Context) ([]*entity.Disruption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.Disruption, 0, len(s.pending))
	for _, p := range s.pending {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// MarkPosted matches on description only; the link half of key is ignored.
func (s *SeenSet) MarkPosted(_ context.Context, key entity.DisruptionKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.pending {
		if p.Description == key.Description {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	s.posted[key.Description] = struct{}{}
	if err := s.saveLocked(); err != nil {
		delete(s.posted, key.Description)
		return false, err
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	return true, nil
}

func (s *SeenSet) Stats(_ context.Context) (repository.DisruptionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return repository.DisruptionStats{
		Total:  int64(len(s.posted) + len(s.pending)),
		Posted: int64(len(s.posted)),
	}, nil
}

func (s *SeenSet) knownLocked(description string) bool {
	if _, ok := s.posted[description]; ok {
		return true
	}
	for _, p := range s.pending {
		if p.Description == description {
			return true
		}
	}
	return false
}

// saveLocked writes the posted set via a synced temp file and rename so a
// crash leaves either the old or the new file.
func (s *SeenSet) saveLocked() error {
	descriptions := make([]string, 0, len(s.posted))
	for d := range s.posted {
		descriptions = append(descriptions, d)
	}
	sort.Strings(descriptions)

	data, err := json.MarshalIndent(descriptions, "", "  ")
	if err != nil {
		return &entity.PersistenceError{Op: "save: Marshal", Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &entity.PersistenceError{Op: "save: CreateTemp", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &entity.PersistenceError{Op: "save: Write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &entity.PersistenceError{Op: "save: Sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &entity.PersistenceError{Op: "save: Close", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return &entity.PersistenceError{Op: "save: Rename", Err: err}
	}
	return nil
}
