// Package storage persists light snapshots and bridge metadata across
// restarts. Two backends are available: SQLite and bbolt.
package storage

import (
	"errors"
	"fmt"

	"github.com/dokzlo13/huestrip/internal/light"
)

// ErrNotFound is returned when a key has never been stored.
var ErrNotFound = errors.New("not found")

// Backends accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Store persists light snapshots and small string metadata values.
type Store interface {
	// SaveLights replaces the stored snapshots of the given lights.
	SaveLights(snaps []light.Snapshot) error
	// LoadLights returns stored snapshots ordered by light number.
	LoadLights() ([]light.Snapshot, error)
	GetMeta(key string) (string, error)
	SetMeta(key, value string) error
	// Clear removes everything.
	Clear() error
	Close() error
}

// lightID is the storage key of a light.
func lightID(number int) string {
	return fmt.Sprintf("%d", number)
}
