// Package workspace holds the in-memory working copy of a repository
// checkout. A Store is the single source of truth for file contents within a
// session; the plan executor and direct-edit handlers are its only writers.
package workspace

import (
	"sort"
	"strings"
	"sync"
)

// FileRecord is one file in the working copy.
type FileRecord struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsModified bool   `json:"isModified"`
	IsNew      bool   `json:"isNew"`
}

// BaseName returns the last segment of a posix-style path.
func BaseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// NewRecord builds a FileRecord with the display name derived from path.
func NewRecord(path, content string) FileRecord {
	return FileRecord{Path: path, Name: BaseName(path), Content: content}
}

// Store is a mutex-guarded file set. The host is multi-threaded, so the
// single-writer discipline of the original browser runtime becomes a lock.
type Store struct {
	mu    sync.RWMutex
	files map[string]FileRecord
}

// NewStore creates a Store seeded with the given records. Later records win
// on duplicate paths.
func NewStore(records []FileRecord) *Store {
	s := &Store{files: make(map[string]FileRecord, len(records))}
	for _, r := range records {
		if r.Name == "" {
			r.Name = BaseName(r.Path)
		}
		s.files[r.Path] = r
	}
	return s
}

// Get returns the record at path.
func (s *Store) Get(path string) (FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.files[path]
	return r, ok
}

// Put upserts content at path, used by direct edits. An existing file is
// marked modified; a new path is created with IsNew set.
func (s *Store) Put(path, content string) FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.files[path]; ok {
		r.Content = content
		r.IsModified = true
		s.files[path] = r
		return r
	}
	r := NewRecord(path, content)
	r.IsNew = true
	s.files[path] = r
	return r
}

// Delete removes the record at path. Returns false if it was absent.
func (s *Store) Delete(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return false
	}
	delete(s.files, path)
	return true
}

// List returns all records ordered by path. The ordering is deterministic so
// prompts and API listings are reproducible.
func (s *Store) List() []FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FileRecord, 0, len(s.files))
	for _, r := range s.files {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Modified returns records with local changes (modified or new), ordered by
// path. This is the subset handed to the push service.
func (s *Store) Modified() []FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FileRecord, 0)
	for _, r := range s.files {
		if r.IsModified || r.IsNew {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Snapshot returns a working copy of the file map. Records are values, so
// the copy shares no mutable state with the store.
func (s *Store) Snapshot() map[string]FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]FileRecord, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Replace swaps the canonical file map in one step. Used by the executor to
// publish a fully-applied plan, never a partial one.
func (s *Store) Replace(files map[string]FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
}

// MarkSynced clears the modified/new flags after a successful push.
func (s *Store) MarkSynced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.files {
		r.IsModified = false
		r.IsNew = false
		s.files[k] = r
	}
}
