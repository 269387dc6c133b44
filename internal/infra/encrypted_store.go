package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/app_lock/internal/domain"
)

const (
	storeDBName = "applock.db"

	// MaxEvents bounds the security event log; older rows are pruned on append.
	MaxEvents = 1000
)

// EncryptedStore implements domain.KVStore and domain.EventLog using a
// SQLCipher encrypted SQLite database.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// OpenEncryptedStore opens (or creates) the encrypted settings database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func OpenEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// Poll loop and HTTP handlers serialize on a single connection.
	db.SetMaxOpenConns(1)

	// Verify encryption works by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS security_events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_security_events_created_at ON security_events (created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- domain.KVStore implementation ---

// Get returns the stored value for key.
func (s *EncryptedStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces key.
func (s *EncryptedStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *EncryptedStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Keys lists stored setting keys.
func (s *EncryptedStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- domain.EventLog implementation ---

// Append stores ev and prunes the log to MaxEvents rows.
func (s *EncryptedStore) Append(ev domain.SecurityEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`INSERT INTO security_events (id, type, target, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.Target, ev.Detail, ev.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	_, err = tx.Exec(`
		DELETE FROM security_events WHERE rowid NOT IN (
			SELECT rowid FROM security_events ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, MaxEvents)
	if err != nil {
		return fmt.Errorf("failed to prune security events: %w", err)
	}
	return tx.Commit()
}

// Recent returns up to limit events, newest first.
func (s *EncryptedStore) Recent(limit int) ([]domain.SecurityEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, type, target, detail, created_at FROM security_events
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	var events []domain.SecurityEvent
	for rows.Next() {
		var ev domain.SecurityEvent
		var typ string
		var created int64
		if err := rows.Scan(&ev.ID, &typ, &ev.Target, &ev.Detail, &created); err != nil {
			return nil, err
		}
		ev.Type = domain.SecurityEventType(typ)
		ev.CreatedAt = time.UnixMilli(created)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ domain.KVStore  = (*EncryptedStore)(nil)
	_ domain.EventLog = (*EncryptedStore)(nil)
)
