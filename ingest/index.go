package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Index is a content-addressed registry of stored assets. It lets retried
// uploads of identical bytes resolve to the already stored file instead of
// accumulating duplicates.
type Index struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// OpenIndex opens (creating if needed) the asset index database at path.
func OpenIndex(path string) (*Index, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("unable to open asset index: %w", err)
	}
	err = sqlitex.ExecuteTransient(conn, `CREATE TABLE IF NOT EXISTS assets (
		digest TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mime TEXT NOT NULL,
		size INTEGER NOT NULL,
		stored_at INTEGER NOT NULL
	)`, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare asset index schema: %w", err)
	}
	return &Index{conn: conn}, nil
}

// Close releases the underlying database connection.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.conn.Close()
}

// Digest returns the content key used by the index.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the stored name and MIME for a digest, ok is false when the
// digest is unknown.
func (ix *Index) Lookup(digest string) (name, mimeType string, ok bool, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	err = sqlitex.Execute(ix.conn, `SELECT name, mime FROM assets WHERE digest = ?`,
		&sqlitex.ExecOptions{
			Args: []any{digest},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				name = stmt.ColumnText(0)
				mimeType = stmt.ColumnText(1)
				ok = true
				return nil
			},
		})
	if err != nil {
		return "", "", false, fmt.Errorf("unable to query asset index: %w", err)
	}
	return name, mimeType, ok, nil
}

// Record remembers a stored asset under its digest. Recording the same digest
// twice keeps the first name, concurrent duplicate stores resolve cleanly.
func (ix *Index) Record(digest, name, mimeType string, size int64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	err := sqlitex.Execute(ix.conn, `INSERT INTO assets (digest, name, mime, size, stored_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(digest) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{digest, name, mimeType, size, time.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("unable to record asset: %w", err)
	}
	return nil
}
