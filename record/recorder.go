// Package record persists extracted place data and optional debug
// artifacts.
package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aluiziolira/go-maps-images/models"
)

// Recorder accumulates place records for one run and writes them to a
// single JSON document. The file is written atomically: Finalize encodes
// into a temp file in the destination directory and renames it over the
// target, so a crash mid-write never leaves a truncated record file.
type Recorder struct {
	path  string
	query string

	mu        sync.Mutex
	places    []*models.PlaceRecord
	finalized bool
}

// NewRecorder prepares a recorder writing to path.
func NewRecorder(path, query string) (*Recorder, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &Recorder{
		path:   path,
		query:  query,
		places: make([]*models.PlaceRecord, 0, 8),
	}, nil
}

// Append adds one place record. Appending after Finalize is an error.
func (r *Recorder) Append(place *models.PlaceRecord) error {
	if place == nil {
		return fmt.Errorf("append nil place record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return fmt.Errorf("recorder already finalized")
	}
	r.places = append(r.places, place)
	return nil
}

// Count reports how many places have been appended.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.places)
}

// Finalize writes the run record to disk. A run with zero places still
// produces a valid document. Calling Finalize more than once is a no-op.
func (r *Recorder) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return nil
	}

	doc := models.RunRecord{
		Query:       r.query,
		GeneratedAt: time.Now().UTC(),
		Places:      r.places,
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".record-*.json")
	if err != nil {
		return fmt.Errorf("create temp record file: %w", err)
	}
	tmpName := tmp.Name()

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode run record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp record file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename record file: %w", err)
	}

	r.finalized = true
	return nil
}

// Path reports the destination file.
func (r *Recorder) Path() string {
	return r.path
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
