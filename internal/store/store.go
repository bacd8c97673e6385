// Package store owns the persisted brand and feature records and the
// operations on them: atomic dataset replacement, catalog queries, streaming
// export, and box-constrained lookup. It runs on an embedded SQLite database
// (modernc.org/sqlite) shared with the spatial index.
package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/brandy/internal/spatial"
)

// Error kinds surfaced to callers. Wrap sites attach context; check with
// eris.Is.
var (
	// ErrInvalidInput marks a malformed or empty ingest document. Nothing is
	// written when it is returned.
	ErrInvalidInput = eris.New("invalid input")
	// ErrNotFound marks an unknown brand, scrape, or user.
	ErrNotFound = eris.New("not found")
)

// dbtx is the query/exec subset shared with the spatial index so operations
// can run inside the store's transactions.
type dbtx = spatial.DBTX

// Store is the feature store. Safe for concurrent use; ingests for the same
// brand are serialized, ingests for different brands proceed independently.
type Store struct {
	db  *sql.DB
	idx *spatial.Index

	mu         sync.Mutex
	brandLocks map[int64]*sync.Mutex
}

// Open opens the SQLite database at path and configures WAL mode so readers
// keep a consistent snapshot while a replacement transaction is in flight.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Store{
		db:         db,
		idx:        spatial.NewIndex(),
		brandLocks: make(map[int64]*sync.Mutex),
	}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS brand (
	brand_id      INTEGER PRIMARY KEY,
	last_checked  DATETIME NOT NULL,
	last_modified DATETIME NOT NULL,
	min_lng REAL,
	min_lat REAL,
	max_lng REAL,
	max_lat REAL
);

CREATE TABLE IF NOT EXISTS brand_feature (
	internal_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	brand_id      INTEGER NOT NULL,
	feature_id    TEXT NOT NULL,
	lng           REAL NOT NULL,
	lat           REAL NOT NULL,
	hash_hi       INTEGER NOT NULL,
	hash_lo       INTEGER NOT NULL,
	last_modified DATETIME NOT NULL,
	props         BLOB NOT NULL,
	UNIQUE(brand_id, feature_id)
);

CREATE INDEX IF NOT EXISTS idx_brand_feature_brand ON brand_feature(brand_id);

CREATE TABLE IF NOT EXISTS scrape (
	id           TEXT PRIMARY KEY,
	scraper      TEXT NOT NULL,
	scraped      DATETIME NOT NULL,
	num_features INTEGER NOT NULL,
	error_log    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0
);
`

// Migrate creates the schema, including the spatial index virtual table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return eris.Wrap(err, "store: migrate")
	}
	if _, err := s.db.ExecContext(ctx, spatial.Schema); err != nil {
		return eris.Wrap(err, "store: migrate spatial index")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// brandLock returns the mutex serializing ingests for one brand.
func (s *Store) brandLock(brandID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.brandLocks[brandID]
	if !ok {
		l = &sync.Mutex{}
		s.brandLocks[brandID] = l
	}
	return l
}
