package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huestrip/internal/light"
)

// Kinds stored in resource_state.
const (
	kindLight = "light"
	kindMeta  = "meta"
)

// SQLiteStore keeps versioned JSON payloads keyed by (kind, id) in the
// resource_state table. The database handle is owned by the caller.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a store on an opened database (see db.Open).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves payload and version for a resource.
// Returns ErrNotFound if the resource was never stored.
func (s *SQLiteStore) Get(kind, id string) (payload []byte, version int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloadStr string
	err = s.db.QueryRow(`
		SELECT payload, version FROM resource_state
		WHERE kind = ? AND id = ?
	`, kind, id).Scan(&payloadStr, &version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%s/%s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, 0, err
	}

	return []byte(payloadStr), version, nil
}

// Set stores payload, incrementing version automatically.
func (s *SQLiteStore) Set(kind, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set(s.db, kind, id, payload)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) set(ex execer, kind, id string, payload []byte) error {
	now := time.Now().UTC().Unix()

	_, err := ex.Exec(`
		INSERT INTO resource_state (kind, id, payload, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			payload = excluded.payload,
			version = version + 1,
			updated_at = excluded.updated_at
	`, kind, id, string(payload), now)
	return err
}

// GetAll returns all payloads of a kind keyed by id.
func (s *SQLiteStore) GetAll(kind string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, payload FROM resource_state WHERE kind = ?
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payloads := make(map[string][]byte)
	for rows.Next() {
		var id, payloadStr string
		if err := rows.Scan(&id, &payloadStr); err != nil {
			return nil, err
		}
		payloads[id] = []byte(payloadStr)
	}
	return payloads, rows.Err()
}

// SaveLights writes all snapshots in one transaction.
func (s *SQLiteStore) SaveLights(snaps []light.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, snap := range snaps {
		payload, err := json.Marshal(snap)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal light %d: %w", snap.Number, err)
		}
		if err := s.set(tx, kindLight, lightID(snap.Number), payload); err != nil {
			tx.Rollback()
			return fmt.Errorf("save light %d: %w", snap.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Debug().Int("lights", len(snaps)).Msg("Saved light snapshots to SQLite")
	return nil
}

// LoadLights returns all stored snapshots ordered by light number.
func (s *SQLiteStore) LoadLights() ([]light.Snapshot, error) {
	payloads, err := s.GetAll(kindLight)
	if err != nil {
		return nil, err
	}
	return decodeSnapshots(payloads)
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	payload, _, err := s.Get(kindMeta, key)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	return s.Set(kindMeta, key, []byte(value))
}

// Clear removes all stored state.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM resource_state WHERE kind IN (?, ?)`, kindLight, kindMeta)
	return err
}

// Close is a no-op; the database belongs to the caller.
func (s *SQLiteStore) Close() error { return nil }

func decodeSnapshots(payloads map[string][]byte) ([]light.Snapshot, error) {
	snaps := make([]light.Snapshot, 0, len(payloads))
	for id, payload := range payloads {
		var snap light.Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("decode light %s: %w", id, err)
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Number < snaps[j].Number })
	return snaps, nil
}
