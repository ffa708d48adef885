// Package store implements the content-addressed artifact store and
// build cache: hashing, local persistence, a sqlite metadata index, an
// in-memory hot layer, and garbage collection.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// entryDescriptor is one (mode, path, content-hash) tuple contributing
// to a directory's canonical hash.
type entryDescriptor struct {
	relPath string
	mode    os.FileMode
	hash    [32]byte
}

// HashTree computes the canonical content hash of the directory at
// root: a blake2b-256 digest over the sorted stream of
// (mode, path, content-hash) tuples, so the hash depends only on tree
// contents, never on walk order or filesystem metadata noise like
// mtimes.
func HashTree(root string) ([32]byte, error) {
	var descriptors []entryDescriptor

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		h, err := hashFile(path)
		if err != nil {
			return err
		}
		descriptors = append(descriptors, entryDescriptor{relPath: rel, mode: info.Mode().Perm(), hash: h})
		return nil
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].relPath < descriptors[j].relPath })

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, err
	}
	for _, d := range descriptors {
		fmt.Fprintf(hasher, "%o %s %x\n", d.mode, d.relPath, d.hash)
	}

	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out, nil
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, err
	}
	if _, err := io.Copy(hasher, f); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out, nil
}

// Hash is the store's canonical, hex-encoded content address.
type Hash string

// ComputeHash hashes root plus an explicit caller-supplied inputs
// digest (component name, version, dependency hashes) into the final
// store key.
func ComputeHash(root, inputsDigest string) (Hash, error) {
	treeHash, err := HashTree(root)
	if err != nil {
		return "", err
	}
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	hasher.Write(treeHash[:])
	hasher.Write([]byte(inputsDigest))
	return Hash(fmt.Sprintf("%x", hasher.Sum(nil))), nil
}

func (h Hash) Prefix() string {
	s := string(h)
	if len(s) < 2 {
		return s
	}
	return s[:2]
}
