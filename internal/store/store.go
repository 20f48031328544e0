// Package store provides optional SQLite-backed persistence for a
// Transceiver's outbound counter and known-peer table, grounded on the
// teacher's internal/storage/database.go (same Open/migrate/WAL
// pattern, generalized from the agricultural device schema to SLLL's
// two persisted concerns).
//
// Persisting the outbound counter lets a node survive a restart
// without risking nonce reuse under the same key: spec.md §9 flags
// counter persistence as an open question and recommends durable
// storage "if the deployment cannot guarantee key rotation on
// restart" — this package is that storage, wired in as an explicit
// opt-in rather than baked into the Transceiver itself.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite connection holding the outbound counter and
// the table of peers this node has accepted packets from.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path in WAL mode and runs
// migrations.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outbound_counter (
		sender_id INTEGER PRIMARY KEY,
		counter INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS peers (
		sender_id INTEGER PRIMARY KEY,
		last_counter INTEGER NOT NULL,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// LoadCounter returns the last persisted outbound counter for
// senderID, or (0, false) if nothing has been persisted yet — callers
// should treat the absent case as "start from 0", matching a fresh
// key's fresh counter space.
func (s *Store) LoadCounter(senderID uint32) (uint64, bool, error) {
	var counter uint64
	err := s.conn.QueryRow(`SELECT counter FROM outbound_counter WHERE sender_id = ?`, senderID).Scan(&counter)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: load counter: %w", err)
	}
	return counter, true, nil
}

// SaveCounter persists the current outbound counter for senderID.
func (s *Store) SaveCounter(senderID uint32, counter uint64) error {
	_, err := s.conn.Exec(`
		INSERT INTO outbound_counter (sender_id, counter, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(sender_id) DO UPDATE SET counter = excluded.counter, updated_at = excluded.updated_at
	`, senderID, counter, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save counter: %w", err)
	}
	return nil
}

// UpsertPeer records or refreshes a peer's replay-guard high-water
// mark. It is advisory bookkeeping for operators; the in-memory
// replay.Guard remains the enforcement point.
func (s *Store) UpsertPeer(senderID uint32, lastCounter uint64) error {
	now := time.Now().UTC()
	_, err := s.conn.Exec(`
		INSERT INTO peers (sender_id, last_counter, first_seen, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sender_id) DO UPDATE SET last_counter = excluded.last_counter, last_seen = excluded.last_seen
	`, senderID, lastCounter, now, now)
	if err != nil {
		return fmt.Errorf("store: upsert peer: %w", err)
	}
	return nil
}

// Peer is a persisted record of a sender this node has exchanged
// packets with.
type Peer struct {
	SenderID    uint32
	LastCounter uint64
	FirstSeen   time.Time
	LastSeen    time.Time
}

// ListPeers returns every persisted peer, ordered by sender ID.
func (s *Store) ListPeers() ([]Peer, error) {
	rows, err := s.conn.Query(`SELECT sender_id, last_counter, first_seen, last_seen FROM peers ORDER BY sender_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list peers: %w", err)
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		var p Peer
		if err := rows.Scan(&p.SenderID, &p.LastCounter, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("store: scan peer: %w", err)
		}
		peers = append(peers, p)
	}
	return peers, rows.Err()
}
