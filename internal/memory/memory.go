// Package memory is the per-tool key/value Memory Store:
// persistent state tools can read and write across invocations, scoped by
// tool name, with optional per-key expiry.
//
// Backed by modernc.org/sqlite (pure Go, no cgo) with WAL + NORMAL
// synchronous pragmas and a single forced-serial connection
// (SetMaxOpenConns(1)) for single-writer-at-a-time semantics, schema
// migrations run through github.com/pressly/goose/v3.
package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Algiras/skillz/internal/logging"
	"github.com/Algiras/skillz/internal/memory/migrations"
	"github.com/Algiras/skillz/internal/skillzerr"
)

// Store is the Memory Store. All access serializes through a single
// open connection: one process at a time writes.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Stats summarizes memory usage across all tools.
type Stats struct {
	TotalEntries   int64
	TotalTools     int64
	TotalSizeBytes int64
	ToolsByCount   []ToolCount
}

type ToolCount struct {
	Tool  string
	Count int64
}

// Open opens (creating if absent) the memory database under toolsDir and
// runs pending migrations.
func Open(toolsDir string) (*Store, error) {
	if err := os.MkdirAll(toolsDir, 0755); err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "create tools directory")
	}

	dbPath := filepath.Join(toolsDir, ".memory.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "open memory database at %s", dbPath)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "ping memory database")
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "run memory migrations")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for (tool, key), or found=false if absent
// or expired.
func (s *Store) Get(tool, key string) (interface{}, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jsonStr string
	err := s.db.QueryRow(
		`SELECT value FROM memories WHERE tool = ? AND key = ? AND (expires_at IS NULL OR expires_at > datetime('now'))`,
		tool, key,
	).Scan(&jsonStr)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, skillzerr.Wrap(skillzerr.StorageFailure, err, "get %s/%s", tool, key)
	}

	var value interface{}
	if err := json.Unmarshal([]byte(jsonStr), &value); err != nil {
		return nil, false, skillzerr.Wrap(skillzerr.StorageFailure, err, "decode stored value for %s/%s", tool, key)
	}
	return value, true, nil
}

// Set upserts a value, optionally expiring it after ttlSeconds (0 means
// no expiry; a negative value stores an entry that is already expired).
func (s *Store) Set(tool, key string, value interface{}, ttlSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(value)
	if err != nil {
		return skillzerr.Wrap(skillzerr.ValidationFailed, err, "encode value for %s/%s", tool, key)
	}

	// expires_at uses SQLite's datetime('now') text layout so the string
	// comparisons in the queries order timestamps correctly.
	var expiresAt interface{}
	if ttlSeconds != 0 {
		expiresAt = time.Now().UTC().Add(time.Duration(ttlSeconds) * time.Second).Format("2006-01-02 15:04:05")
	}

	_, err = s.db.Exec(
		`INSERT INTO memories (tool, key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(tool, key) DO UPDATE SET
		   value = excluded.value,
		   expires_at = excluded.expires_at,
		   updated_at = datetime('now')`,
		tool, key, string(data), expiresAt,
	)
	if err != nil {
		return skillzerr.Wrap(skillzerr.StorageFailure, err, "set %s/%s", tool, key)
	}
	return nil
}

// ListKeys returns every non-expired key stored for tool, sorted.
func (s *Store) ListKeys(tool string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT key FROM memories WHERE tool = ? AND (expires_at IS NULL OR expires_at > datetime('now')) ORDER BY key`,
		tool,
	)
	if err != nil {
		return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "list keys for %s", tool)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, skillzerr.Wrap(skillzerr.StorageFailure, err, "scan key for %s", tool)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Delete removes (tool, key), reporting whether a row existed.
func (s *Store) Delete(tool, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE tool = ? AND key = ?`, tool, key)
	if err != nil {
		return false, skillzerr.Wrap(skillzerr.StorageFailure, err, "delete %s/%s", tool, key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, skillzerr.Wrap(skillzerr.StorageFailure, err, "delete %s/%s", tool, key)
	}
	return n > 0, nil
}

// Clear removes every entry for tool, returning the count removed.
func (s *Store) Clear(tool string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE tool = ?`, tool)
	if err != nil {
		return 0, skillzerr.Wrap(skillzerr.StorageFailure, err, "clear %s", tool)
	}
	return res.RowsAffected()
}

// ClearAll removes every entry across all tools.
func (s *Store) ClearAll() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories`)
	if err != nil {
		return 0, skillzerr.Wrap(skillzerr.StorageFailure, err, "clear all memory")
	}
	return res.RowsAffected()
}

// CleanupExpired deletes every row whose expiry has passed, returning the
// count removed.
func (s *Store) CleanupExpired() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at <= datetime('now')`)
	if err != nil {
		return 0, skillzerr.Wrap(skillzerr.StorageFailure, err, "cleanup expired memory")
	}
	return res.RowsAffected()
}

// Stats reports usage statistics across all tools.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&stats.TotalEntries); err != nil {
		return Stats{}, skillzerr.Wrap(skillzerr.StorageFailure, err, "count entries")
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT tool) FROM memories`).Scan(&stats.TotalTools); err != nil {
		return Stats{}, skillzerr.Wrap(skillzerr.StorageFailure, err, "count tools")
	}
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM memories`).Scan(&stats.TotalSizeBytes); err != nil {
		return Stats{}, skillzerr.Wrap(skillzerr.StorageFailure, err, "sum size")
	}

	rows, err := s.db.Query(`SELECT tool, COUNT(*) AS cnt FROM memories GROUP BY tool ORDER BY cnt DESC LIMIT 10`)
	if err != nil {
		return Stats{}, skillzerr.Wrap(skillzerr.StorageFailure, err, "per-tool counts")
	}
	defer rows.Close()
	for rows.Next() {
		var tc ToolCount
		if err := rows.Scan(&tc.Tool, &tc.Count); err != nil {
			return Stats{}, skillzerr.Wrap(skillzerr.StorageFailure, err, "scan per-tool count")
		}
		stats.ToolsByCount = append(stats.ToolsByCount, tc)
	}
	return stats, rows.Err()
}

// StartSweeper runs CleanupExpired on a fixed interval until stop is
// closed.
func (s *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := s.CleanupExpired(); err != nil {
					logging.Add("ERROR", fmt.Sprintf("memory sweeper: %v", err))
				} else if n > 0 {
					logging.Add("DEBUG", fmt.Sprintf("memory sweeper: removed %d expired entries", n))
				}
			case <-stop:
				return
			}
		}
	}()
}
