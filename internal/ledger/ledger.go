// Package ledger keeps an append-only history of the commands applied to
// the strip, for auditing and debugging.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of a ledger entry.
type Kind string

const (
	KindState Kind = "state"
	KindScene Kind = "scene"
)

// Entry is a single recorded command.
type Entry struct {
	ID        int64          `json:"id"`
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Kind      Kind           `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Ledger appends entries to the command_ledger table.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a ledger on an opened database (see db.Open).
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// NewRequestID returns a fresh identifier for correlating a request with
// its ledger entries and log lines.
func NewRequestID() string {
	return uuid.NewString()
}

// Append records a command. A failed command is recorded with its error.
func (l *Ledger) Append(requestID, source string, kind Kind, payload map[string]any, cmdErr error) error {
	var payloadJSON []byte
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	var errText sql.NullString
	if cmdErr != nil {
		errText = sql.NullString{String: cmdErr.Error(), Valid: true}
	}

	_, err := l.db.Exec(`
		INSERT INTO command_ledger (request_id, timestamp, source, kind, payload, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, requestID, l.now().UTC().UnixMilli(), source, string(kind), string(payloadJSON), errText)
	return err
}

// Recent returns the newest entries first.
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, request_id, timestamp, source, kind, payload, error
		FROM command_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByRequest returns the entries recorded for one request.
func (l *Ledger) ByRequest(requestID string) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, request_id, timestamp, source, kind, payload, error
		FROM command_ledger
		WHERE request_id = ?
		ORDER BY id
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than retention.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`DELETE FROM command_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payload, errText sql.NullString
		var ts int64

		if err := rows.Scan(&entry.ID, &entry.RequestID, &ts, &entry.Source, &entry.Kind, &payload, &errText); err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(ts).UTC()
		entry.Error = errText.String
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
