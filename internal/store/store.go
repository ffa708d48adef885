package store

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/internal/store/remote"
	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var storeLog = logger.New("store")

// Metadata describes one store entry.
type Metadata struct {
	Hash         Hash
	Component    string
	InputsDigest string
	CreatedAt    time.Time
	References   []string
}

// Store is the content-addressed artifact store rooted at a
// `.meta-store` directory, backed by a sqlite metadata index and an
// in-memory LRU hot layer for repeated lookups within one invocation's
// worker pool.
type Store struct {
	root  string
	index *Index
	hot   *lru.Cache[Hash, *Metadata]

	remoteObjects remote.ObjectBackend
	remoteLimiter *remote.Limiter
	remoteCache   remote.CacheBackend
}

// SetRemoteCache attaches a shared remote cache backend (redis://),
// used to let multiple workspaces on the same build farm share
// build-cache hits without a shared filesystem.
func (s *Store) SetRemoteCache(backend remote.CacheBackend) {
	s.remoteCache = backend
}

// Open opens (creating if needed) the store rooted at root.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root %s: %w", root, err)
	}
	idx, err := OpenIndex(filepath.Join(root, "index.db"))
	if err != nil {
		return nil, err
	}
	hot, err := lru.New[Hash, *Metadata](1024)
	if err != nil {
		return nil, err
	}
	return &Store{root: root, index: idx, hot: hot}, nil
}

// SetRemote attaches a remote object backend (s3:// or gs://) and a
// rate limiter governing calls to it. A nil backend disables remote
// mirroring; every call through it already falls back to local on
// failure (see internal/store/remote).
func (s *Store) SetRemote(backend remote.ObjectBackend, limiter *remote.Limiter) {
	s.remoteObjects = backend
	s.remoteLimiter = limiter
}

// pushRemote mirrors a freshly-added entry's packed bytes to the
// remote object backend, best-effort.
func (s *Store) pushRemote(ctx context.Context, hash Hash, data []byte) {
	remote.FallbackPut(ctx, s.remoteObjects, s.remoteLimiter, string(hash), data)
}

// pullRemote attempts to fetch hash's packed bytes from the remote
// object backend when it is absent locally.
func (s *Store) pullRemote(ctx context.Context, hash Hash) ([]byte, bool) {
	return remote.FallbackGet(ctx, s.remoteObjects, s.remoteLimiter, string(hash))
}

func (s *Store) Close() error { return s.index.Close() }

func (s *Store) entryDir(hash Hash) string {
	return filepath.Join(s.root, hash.Prefix(), string(hash))
}

// Add computes the canonical hash of sourcePath (plus inputsDigest)
// and copies its tree into the store under that hash, writing a
// sibling metadata file. Re-adding identical content is a no-op:
// store entries are immutable once written.
func (s *Store) Add(sourcePath, component, inputsDigest string) (Hash, error) {
	hash, err := ComputeHash(sourcePath, inputsDigest)
	if err != nil {
		return "", errs.New(errs.KindVendor, "store-add", []string{component}, "hashing source tree", err)
	}

	dir := s.entryDir(hash)
	if _, err := os.Stat(dir); err == nil {
		return hash, nil // immutable, already present
	}

	tmp := dir + ".tmp"
	defer os.RemoveAll(tmp)
	if err := copyTree(sourcePath, tmp); err != nil {
		return "", errs.New(errs.KindVendor, "store-add", []string{component}, "copying tree into store", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dir); err != nil {
		return "", errs.New(errs.KindVendor, "store-add", []string{component}, "renaming into place", err)
	}

	now := time.Now()
	if err := s.index.recordEntry(hash, component, inputsDigest, now); err != nil {
		return "", fmt.Errorf("recording store entry: %w", err)
	}
	s.hot.Add(hash, &Metadata{Hash: hash, Component: component, InputsDigest: inputsDigest, CreatedAt: now})

	if s.remoteObjects != nil {
		if packed, err := packTree(dir); err == nil {
			s.pushRemote(context.Background(), hash, packed)
		} else {
			storeLog.Printf("failed to pack %s for remote mirror: %v", hash, err)
		}
	}

	return hash, nil
}

// Get atomically restores the directory tree for hash into target,
// pulling from the remote object backend first when the entry is
// absent locally (e.g. a teammate's build populated only the remote
// mirror).
func (s *Store) Get(hash Hash, target string) error {
	dir := s.entryDir(hash)
	if _, err := os.Stat(dir); err != nil {
		if s.remoteObjects == nil {
			return errs.New(errs.KindCacheMiss, "store-get", nil, string(hash), err)
		}
		packed, ok := s.pullRemote(context.Background(), hash)
		if !ok {
			return errs.New(errs.KindCacheMiss, "store-get", nil, string(hash), err)
		}
		if err := unpackTree(packed, dir); err != nil {
			return errs.New(errs.KindCacheMiss, "store-get", nil, string(hash), err)
		}
	}
	tmp := target + ".tmp"
	defer os.RemoveAll(tmp)
	if err := copyTree(dir, tmp); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Query returns metadata for hash, or nil if not present.
func (s *Store) Query(hash Hash) (*Metadata, error) {
	if m, ok := s.hot.Get(hash); ok {
		return m, nil
	}
	m, err := s.index.lookupEntry(hash)
	if err != nil {
		return nil, err
	}
	if m != nil {
		s.hot.Add(hash, m)
	}
	return m, nil
}

// AddReference records that referent (a lock file path, snapshot id,
// or changeset id) keeps hash alive for GC purposes.
func (s *Store) AddReference(hash Hash, referent string) error {
	return s.index.addReference(hash, referent)
}

// AllHashes lists every store entry's hash.
func (s *Store) AllHashes() ([]Hash, error) { return s.index.allHashes() }

// Delete removes a store entry from disk and the index. Callers are
// responsible for only calling this once GC has verified no live
// reference remains.
func (s *Store) Delete(hash Hash) error {
	if err := os.RemoveAll(s.entryDir(hash)); err != nil {
		return err
	}
	s.hot.Remove(hash)
	return s.index.deleteEntry(hash)
}

// packTree archives dir into a gzipped tar blob for remote object
// storage, which speaks blobs, not directory trees. Grounded on the
// standard library only: none of the example repos carry a tar/zip
// dependency for this, and archive/tar + compress/gzip already cover
// the need without adding a redundant library.
func packTree(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpackTree reverses packTree into dst.
func unpackTree(packed []byte, dst string) error {
	gz, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return err
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(dst, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, data, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}
