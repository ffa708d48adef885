// Package changeset implements the append-only changeset log: logical
// groupings of commits across multiple component repositories into one
// atomic-in-intent transaction, with finalize, rollback, and bisect.
package changeset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/pkg/logger"
)

var log = logger.New("changeset:log")

// Status is the closed set of changeset lifecycle states.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCommitted  Status = "committed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled-back"
)

// RepoCommit records one commit, in one component repo, carried by a
// changeset.
type RepoCommit struct {
	Name    string `yaml:"name"`
	Repo    string `yaml:"repo"`
	Commit  string `yaml:"commit"`
	Branch  string `yaml:"branch,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Changeset is the append-only record of a logical cross-repo
// transaction.
type Changeset struct {
	ID          string            `yaml:"id"`
	Timestamp   time.Time         `yaml:"timestamp"`
	Author      string            `yaml:"author"`
	Description string            `yaml:"description,omitempty"`
	Status      Status            `yaml:"status"`
	Repos       []RepoCommit      `yaml:"repos,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
}

// Trailer formats the commit-message trailer carrying this
// changeset's id: "[changeset:<id>]".
func (c *Changeset) Trailer() string {
	return fmt.Sprintf("[changeset:%s]", c.ID)
}

// Index is the small index file enumerating every changeset plus a
// pointer to the current in-progress one, acting as the mutex
// enforcing "at most one in-progress changeset per workspace".
type Index struct {
	Current string   `yaml:"current,omitempty"`
	IDs     []string `yaml:"ids"`
}

// Log manages changesets persisted under
// <workspaceRoot>/.meta/changesets/.
type Log struct {
	root string // .meta/changesets
}

// Open returns a Log rooted at workspaceRoot's changeset directory,
// creating it if absent.
func Open(workspaceRoot string) (*Log, error) {
	root := filepath.Join(workspaceRoot, ".meta", "changesets")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating changeset directory: %w", err)
	}
	return &Log{root: root}, nil
}

func (l *Log) indexPath() string       { return filepath.Join(l.root, "index") }
func (l *Log) changesetPath(id string) string { return filepath.Join(l.root, id) }

func (l *Log) readIndex() (*Index, error) {
	data, err := os.ReadFile(l.indexPath())
	if os.IsNotExist(err) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing changeset index: %w", err)
	}
	return &idx, nil
}

func (l *Log) writeIndex(idx *Index) error {
	data, err := yaml.Marshal(idx)
	if err != nil {
		return err
	}
	return writeAtomic(l.indexPath(), data)
}

func (l *Log) readChangeset(id string) (*Changeset, error) {
	data, err := os.ReadFile(l.changesetPath(id))
	if err != nil {
		return nil, fmt.Errorf("reading changeset %s: %w", id, err)
	}
	var cs Changeset
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("parsing changeset %s: %w", id, err)
	}
	return &cs, nil
}

func (l *Log) writeChangeset(cs *Changeset) error {
	data, err := yaml.Marshal(cs)
	if err != nil {
		return err
	}
	return writeAtomic(l.changesetPath(cs.ID), data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// shortID derives the spec's "short content hash" changeset id:
// hash(author+timestamp+repos), truncated for legibility.
func shortID(author string, ts time.Time, repos []string) string {
	sorted := append([]string(nil), repos...)
	sort.Strings(sorted)
	h := fmt.Sprintf("%s-%d-%v", author, ts.UnixNano(), sorted)
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(h))
	return sum.String()[:12]
}

// Create starts a new in-progress changeset. It fails with
// errs.KindConflict if one is already in-progress — at most one
// in-progress changeset is allowed per workspace at any instant.
func (l *Log) Create(author, description string, repos []string) (*Changeset, error) {
	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}
	if idx.Current != "" {
		return nil, errs.New(errs.KindConflict, "changeset-create", nil,
			fmt.Sprintf("changeset %s is already in-progress", idx.Current), nil)
	}

	now := time.Now()
	cs := &Changeset{
		ID:          shortID(author, now, repos),
		Timestamp:   now,
		Author:      author,
		Description: description,
		Status:      StatusInProgress,
	}
	if err := l.writeChangeset(cs); err != nil {
		return nil, err
	}

	idx.Current = cs.ID
	idx.IDs = append(idx.IDs, cs.ID)
	if err := l.writeIndex(idx); err != nil {
		return nil, err
	}
	log.Printf("created changeset %s", cs.ID)
	return cs, nil
}

// RecordCommit appends one component's commit to the current
// in-progress changeset.
func (l *Log) RecordCommit(id string, rc RepoCommit) error {
	cs, err := l.readChangeset(id)
	if err != nil {
		return err
	}
	if cs.Status != StatusInProgress {
		return errs.New(errs.KindConflict, "changeset-record", []string{rc.Name}, fmt.Sprintf("changeset %s is not in-progress", id), nil)
	}
	cs.Repos = append(cs.Repos, rc)
	return l.writeChangeset(cs)
}

// Finalize transitions an in-progress changeset to committed, clearing
// the index's current pointer so a new changeset may begin.
func (l *Log) Finalize(id string) (*Changeset, error) {
	cs, err := l.readChangeset(id)
	if err != nil {
		return nil, err
	}
	if cs.Status != StatusInProgress {
		return nil, errs.New(errs.KindConflict, "changeset-finalize", nil, fmt.Sprintf("changeset %s is not in-progress", id), nil)
	}
	cs.Status = StatusCommitted
	if err := l.writeChangeset(cs); err != nil {
		return nil, err
	}

	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}
	if idx.Current == id {
		idx.Current = ""
		if err := l.writeIndex(idx); err != nil {
			return nil, err
		}
	}
	log.Printf("finalized changeset %s", id)
	return cs, nil
}

// Get returns one changeset by id.
func (l *Log) Get(id string) (*Changeset, error) { return l.readChangeset(id) }

// Current returns the currently in-progress changeset, or nil if
// none.
func (l *Log) Current() (*Changeset, error) {
	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}
	if idx.Current == "" {
		return nil, nil
	}
	return l.readChangeset(idx.Current)
}

// List returns every changeset, most-recent-first.
func (l *Log) List() ([]*Changeset, error) {
	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}
	out := make([]*Changeset, 0, len(idx.IDs))
	for i := len(idx.IDs) - 1; i >= 0; i-- {
		cs, err := l.readChangeset(idx.IDs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, nil
}

// Committed returns every committed changeset, oldest first, in the
// order their ids appear in the index (the order they were finalized
// in) — the sequence bisect searches over.
func (l *Log) Committed() ([]*Changeset, error) {
	idx, err := l.readIndex()
	if err != nil {
		return nil, err
	}
	var out []*Changeset
	for _, id := range idx.IDs {
		cs, err := l.readChangeset(id)
		if err != nil {
			return nil, err
		}
		if cs.Status == StatusCommitted {
			out = append(out, cs)
		}
	}
	return out, nil
}

// MarkFailed transitions cs to failed, without touching any
// already-reverted commits — the caller (Rollback) decides whether to
// retry.
func (l *Log) markFailed(id string) error {
	cs, err := l.readChangeset(id)
	if err != nil {
		return err
	}
	cs.Status = StatusFailed
	return l.writeChangeset(cs)
}

func (l *Log) markRolledBack(id string) error {
	cs, err := l.readChangeset(id)
	if err != nil {
		return err
	}
	cs.Status = StatusRolledBack
	return l.writeChangeset(cs)
}
