// Package filestore implements the flat-file JSON session store backend.
// It is the default backend and the fallback target when the document store
// is configured but unreachable.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mfriesen/actionreplay/internal/domain"
)

// persistedSession is the on-disk shape of a session record. The credential
// is revealed explicitly here; this struct never leaves the package.
type persistedSession struct {
	Identity     string    `json:"identity"`
	Credential   string    `json:"credential"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUsedAt   time.Time `json:"lastUsedAt"`
	Method       string    `json:"method"`
	SerialTag    string    `json:"serialTag"`
	TotalActions int       `json:"totalActions"`
}

// Store keeps all sessions in a single JSON array on disk. Eviction removes
// the record outright; the file backend has no soft-delete audit trail.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Name() string { return "file" }

func (s *Store) ListActive(_ context.Context) ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted, err := s.read()
	if err != nil {
		return nil, err
	}

	records := make([]domain.SessionRecord, 0, len(persisted))
	for _, p := range persisted {
		records = append(records, fromPersisted(p))
	}
	return records, nil
}

func (s *Store) Upsert(_ context.Context, rec domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted, err := s.read()
	if err != nil {
		return err
	}

	// Remove any prior record with the same identity, then append so the
	// file keeps insertion order.
	kept := persisted[:0]
	for _, p := range persisted {
		if p.Identity != rec.Identity {
			kept = append(kept, p)
		}
	}
	kept = append(kept, toPersisted(rec))

	return s.write(kept)
}

func (s *Store) Deactivate(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted, err := s.read()
	if err != nil {
		return err
	}

	kept := persisted[:0]
	for _, p := range persisted {
		if p.Identity != identity {
			kept = append(kept, p)
		}
	}

	return s.write(kept)
}

func (s *Store) MarkUsed(_ context.Context, identity string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	persisted, err := s.read()
	if err != nil {
		return err
	}

	for i := range persisted {
		if persisted[i].Identity == identity {
			persisted[i].LastUsedAt = at
			persisted[i].TotalActions++
			return s.write(persisted)
		}
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *Store) read() ([]persistedSession, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var persisted []persistedSession
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("failed to parse sessions file: %w", err)
	}
	return persisted, nil
}

// write replaces the file atomically via a temp file and rename.
func (s *Store) write(persisted []persistedSession) error {
	if persisted == nil {
		persisted = []persistedSession{}
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace sessions file: %w", err)
	}
	return nil
}

func toPersisted(rec domain.SessionRecord) persistedSession {
	return persistedSession{
		Identity:     rec.Identity,
		Credential:   rec.Credential.Reveal(),
		CreatedAt:    rec.CreatedAt,
		LastUsedAt:   rec.LastUsedAt,
		Method:       string(rec.Method),
		SerialTag:    rec.SerialTag,
		TotalActions: rec.TotalActions,
	}
}

func fromPersisted(p persistedSession) domain.SessionRecord {
	return domain.SessionRecord{
		Identity:     p.Identity,
		Credential:   domain.NewCredential(p.Credential),
		CreatedAt:    p.CreatedAt,
		LastUsedAt:   p.LastUsedAt,
		Method:       domain.AcquisitionMethod(p.Method),
		SerialTag:    p.SerialTag,
		Active:       true,
		TotalActions: p.TotalActions,
	}
}
