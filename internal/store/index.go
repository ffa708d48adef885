package store

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("store:index")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Index is the derived, rebuildable sqlite metadata index backing
// fast query/lookup without a full directory walk of .meta-store. The
// on-disk directory tree remains authoritative; if the index is
// missing or corrupt it is simply rebuilt by Store.Reindex.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating and migrating if necessary) the sqlite
// index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store index %s: %w", path, err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, fmt.Errorf("migrating store index: %w", err)
	}

	return &Index{db: db}, nil
}

func (i *Index) Close() error { return i.db.Close() }

func (i *Index) recordEntry(hash Hash, component, inputsDigest string, createdAt time.Time) error {
	_, err := i.db.Exec(
		`INSERT INTO store_entries (hash, component, inputs_digest, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO NOTHING`,
		string(hash), component, inputsDigest, createdAt,
	)
	return err
}

func (i *Index) addReference(hash Hash, referent string) error {
	_, err := i.db.Exec(
		`INSERT INTO store_references (hash, referent) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		string(hash), referent,
	)
	return err
}

func (i *Index) lookupEntry(hash Hash) (*Metadata, error) {
	row := i.db.QueryRow(`SELECT component, inputs_digest, created_at FROM store_entries WHERE hash = ?`, string(hash))
	var m Metadata
	m.Hash = hash
	if err := row.Scan(&m.Component, &m.InputsDigest, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	refs, err := i.referencesOf(hash)
	if err != nil {
		return nil, err
	}
	m.References = refs
	return &m, nil
}

func (i *Index) referencesOf(hash Hash) ([]string, error) {
	rows, err := i.db.Query(`SELECT referent FROM store_references WHERE hash = ?`, string(hash))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (i *Index) allHashes() ([]Hash, error) {
	rows, err := i.db.Query(`SELECT hash FROM store_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Hash
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, Hash(h))
	}
	return out, rows.Err()
}

func (i *Index) deleteEntry(hash Hash) error {
	_, err := i.db.Exec(`DELETE FROM store_entries WHERE hash = ?`, string(hash))
	return err
}

func (i *Index) putCacheEntry(key, hash Hash, component, buildTarget string) error {
	_, err := i.db.Exec(
		`INSERT INTO cache_entries (cache_key, hash, component, build_target, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET hash = excluded.hash, created_at = excluded.created_at`,
		string(key), string(hash), component, buildTarget, time.Now(),
	)
	return err
}

func (i *Index) lookupCacheEntry(key Hash) (Hash, time.Time, bool, error) {
	row := i.db.QueryRow(`SELECT hash, created_at FROM cache_entries WHERE cache_key = ?`, string(key))
	var hash string
	var createdAt time.Time
	if err := row.Scan(&hash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, err
	}
	return Hash(hash), createdAt, true, nil
}

func (i *Index) deleteCacheEntry(key Hash) error {
	_, err := i.db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, string(key))
	return err
}

func (i *Index) deleteCacheEntriesByComponent(component string) error {
	_, err := i.db.Exec(`DELETE FROM cache_entries WHERE component = ?`, component)
	return err
}

func (i *Index) allCacheEntriesOlderThan(ttl time.Duration) ([]Hash, error) {
	cutoff := time.Now().Add(-ttl)
	rows, err := i.db.Query(`SELECT cache_key FROM cache_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Hash
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, Hash(k))
	}
	return out, rows.Err()
}
