package store

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aegisdns/aegisdns/internal/dns"
)

// MutationResult reports which of the two upsert outcomes occurred.
type MutationResult int

const (
	Created MutationResult = iota
	Updated
)

// ErrNotFound is returned by Delete when the name has no record.
var ErrNotFound = errors.New("store: record not found")

// Store is the shared, mutable index mapping canonicalised names to
// records (SPEC_FULL.md §3). A single readers-writer guard spans both the
// in-memory map and the backing-file write, per the durability ordering in
// §5/§9: Upsert/Delete/Persist serialise against each other and against
// lookups, while Lookup/List may run in parallel with one another.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	log     *slog.Logger
}

// New returns an empty store. Use LoadFromFile to populate it from disk.
func New(log *slog.Logger) *Store {
	return &Store{
		records: make(map[string]Record),
		log:     log,
	}
}

// LoadFromFile populates the store from path, skipping and logging
// malformed lines rather than failing the whole load — the same tolerant,
// per-line discipline the teacher's zone loader applies to zone files. A
// missing file is treated as an empty store, not an error, so a cold start
// with no backing file yet can still bind successfully.
func (s *Store) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("store: open %s: %w", path, err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]Record)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			if s.log != nil {
				s.log.Warn("skipping malformed record line", "path", path, "line", lineNo, "error", err)
			}
			continue
		}
		records[r.Name] = r
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("store: read %s: %w", path, err)
	}

	s.records = records
	return nil
}

// Lookup returns the record for name, canonicalising first. Multiple
// lookups may proceed concurrently with each other and are never blocked
// by other lookups.
func (s *Store) Lookup(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[dns.NormalizeName(name)]
	return r, ok
}

// List returns a snapshot of all records. Mutating the returned slice does
// not affect the store.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Upsert validates and inserts or replaces r. Duplicate upsert of an
// identical record succeeds idempotently as Updated.
func (s *Store) Upsert(r Record) (MutationResult, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[r.Name]
	s.records[r.Name] = r
	if existed {
		return Updated, nil
	}
	return Created, nil
}

// Merge applies a partial update (PUT semantics): existing fields are kept
// unless overridden by a non-zero-value field in patch. Returns
// ErrNotFound if name has no record.
func (s *Store) Merge(name string, patch Record) (Record, error) {
	name = dns.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[name]
	if !ok {
		return Record{}, ErrNotFound
	}

	merged := existing
	if patch.IP != "" {
		merged.IP = patch.IP
	}
	if patch.TTL != 0 {
		merged.TTL = patch.TTL
	}
	if patch.Type != 0 {
		merged.Type = patch.Type
	}
	if patch.Class != 0 {
		merged.Class = patch.Class
	}
	if patch.Value != "" {
		merged.Value = patch.Value
	}

	if err := merged.Validate(); err != nil {
		return Record{}, err
	}
	s.records[name] = merged
	return merged, nil
}

// Delete removes the record for name. Returns ErrNotFound if absent.
func (s *Store) Delete(name string) error {
	name = dns.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[name]; !ok {
		return ErrNotFound
	}
	delete(s.records, name)
	return nil
}

// Persist rewrites the backing file atomically: write to a temp file in
// the same directory, fsync, then rename over the target. This write-ahead
// discipline guarantees that a crash mid-write leaves either the old file
// or the new file fully readable, never a torn one (SPEC_FULL.md §7).
//
// Callers that need persistence synchronised with an in-memory mutation
// must hold the same write section; persistLocked below is used internally
// by UpsertAndPersist/MergeAndPersist/DeleteAndPersist for exactly that
// reason.
func (s *Store) Persist(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(path)
}

func (s *Store) persistLocked(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	for _, r := range s.records {
		if _, err := w.WriteString(r.marshalLine() + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("store: write temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: flush temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("store: rename temp file: %w", err)
	}
	return nil
}

// UpsertAndPersist performs Upsert then Persist under the same write
// section, so the caller's HTTP response is only sent once the new state
// is durable (SPEC_FULL.md §5 ordering guarantee). onCommit, if non-nil, runs
// with the mutation result after the persist succeeds but before the write
// lock is released, so a caller recording an Audit Entry from it writes
// inside the same write-guard critical section as the store mutation and
// backing-file persist (SPEC_FULL.md §3) — no reader can observe the
// persisted record before its audit row has been written. The backing file
// is renamed into place before onCommit runs, so a crash between the two
// leaves the record persisted without its audit row.
func (s *Store) UpsertAndPersist(r Record, path string, onCommit func(MutationResult)) (MutationResult, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.records[r.Name]
	s.records[r.Name] = r
	if err := s.persistLocked(path); err != nil {
		// Roll back the in-memory mutation: the on-disk state did not
		// change, so the map must not claim otherwise.
		if existed {
			s.records[r.Name] = previous
		} else {
			delete(s.records, r.Name)
		}
		return 0, err
	}
	result := Created
	if existed {
		result = Updated
	}
	if onCommit != nil {
		onCommit(result)
	}
	return result, nil
}

// MergeAndPersist is Merge followed by Persist under one write section.
// onCommit runs with the merged record under the same write lock, for the
// same reason UpsertAndPersist's does (SPEC_FULL.md §3).
func (s *Store) MergeAndPersist(name string, patch Record, path string, onCommit func(Record)) (Record, error) {
	name = dns.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[name]
	if !ok {
		return Record{}, ErrNotFound
	}

	merged := existing
	if patch.IP != "" {
		merged.IP = patch.IP
	}
	if patch.TTL != 0 {
		merged.TTL = patch.TTL
	}
	if patch.Type != 0 {
		merged.Type = patch.Type
	}
	if patch.Class != 0 {
		merged.Class = patch.Class
	}
	if patch.Value != "" {
		merged.Value = patch.Value
	}
	if err := merged.Validate(); err != nil {
		return Record{}, err
	}

	s.records[name] = merged
	if err := s.persistLocked(path); err != nil {
		s.records[name] = existing
		return Record{}, err
	}
	if onCommit != nil {
		onCommit(merged)
	}
	return merged, nil
}

// DeleteAndPersist is Delete followed by Persist under one write section.
// onCommit runs under the same write lock, for the same reason
// UpsertAndPersist's does (SPEC_FULL.md §3).
func (s *Store) DeleteAndPersist(name string, path string, onCommit func()) error {
	name = dns.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[name]
	if !ok {
		return ErrNotFound
	}
	delete(s.records, name)
	if err := s.persistLocked(path); err != nil {
		s.records[name] = existing
		return err
	}
	if onCommit != nil {
		onCommit()
	}
	return nil
}

// Count returns the number of records currently held, for the active
// records gauge (SPEC_FULL.md §6).
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

