package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/converge/internal/addr"
)

// document is the on-disk layout: a versioned map of resource identity to
// record, plus a serial that increments on every write.
type document struct {
	Version   int                    `json:"version"`
	Serial    uint64                 `json:"serial"`
	Resources map[string]*recordJSON `json:"resources"`
}

// recordJSON is the wire form of a Record. Attribute values are stored next
// to their cty type so they round-trip losslessly.
type recordJSON struct {
	ID                  string          `json:"id"`
	AttributesType      json.RawMessage `json:"attributes_type"`
	Attributes          json.RawMessage `json:"attributes"`
	CreateBeforeDestroy bool            `json:"create_before_destroy,omitempty"`
	PreventDestroy      bool            `json:"prevent_destroy,omitempty"`
	Dependencies        []string        `json:"dependencies,omitempty"`
}

// FileStore is the durable, file-backed Store. An exclusive flock on a
// sibling .lock file keeps concurrent applies from interleaving writes.
type FileStore struct {
	path string

	mu     sync.Mutex
	lock   *flock.Flock
	locked bool
	doc    *document
}

// NewFileStore returns a store persisting to the given path. No file is
// created or read until the store is locked.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Lock implements Store. It fails fast with ConcurrentModificationError when
// another process already holds the lock, then loads the document.
func (s *FileStore) Lock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return &ConcurrentModificationError{Path: s.path}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("preparing state directory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	got, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring state lock: %w", err)
	}
	if !got {
		return &ConcurrentModificationError{Path: s.path}
	}

	doc, err := s.load()
	if err != nil {
		_ = s.lock.Unlock()
		return err
	}
	s.doc = doc
	s.locked = true
	return nil
}

// Unlock implements Store.
func (s *FileStore) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return errNotLocked
	}
	s.locked = false
	s.doc = nil
	return s.lock.Unlock()
}

// Get implements Store.
func (s *FileStore) Get(a addr.Address) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return nil, false, errNotLocked
	}
	rj, ok := s.doc.Resources[a.String()]
	if !ok {
		return nil, false, nil
	}
	rec, err := decodeRecord(a, rj, s.path)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Put implements Store. The document is rewritten atomically via a temp file
// rename so a crash never leaves a half-written state file.
func (s *FileStore) Put(a addr.Address, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return errNotLocked
	}
	rj, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	s.doc.Resources[a.String()] = rj
	s.doc.Serial++
	return s.persist()
}

// Remove implements Store.
func (s *FileStore) Remove(a addr.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return errNotLocked
	}
	if _, ok := s.doc.Resources[a.String()]; !ok {
		return nil
	}
	delete(s.doc.Resources, a.String())
	s.doc.Serial++
	return s.persist()
}

// All implements Store.
func (s *FileStore) All() (map[addr.Address]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locked {
		return nil, errNotLocked
	}
	out := make(map[addr.Address]*Record, len(s.doc.Resources))

	// Sorted iteration keeps decode-error reporting deterministic.
	keys := make([]string, 0, len(s.doc.Resources))
	for k := range s.doc.Resources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		a, err := addr.Parse(k)
		if err != nil {
			return nil, &CorruptionError{Path: s.path, Err: err}
		}
		rec, err := decodeRecord(a, s.doc.Resources[k], s.path)
		if err != nil {
			return nil, err
		}
		out[a] = rec
	}
	return out, nil
}

// load reads and validates the document, treating a missing file as empty.
func (s *FileStore) load() (*document, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{Version: CurrentVersion, Resources: map[string]*recordJSON{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &CorruptionError{Path: s.path, Err: err}
	}
	if doc.Version != CurrentVersion {
		return nil, &CorruptionError{Path: s.path, Err: fmt.Errorf("unsupported state version %d (want %d)", doc.Version, CurrentVersion)}
	}
	if doc.Resources == nil {
		doc.Resources = map[string]*recordJSON{}
	}
	return &doc, nil
}

// persist writes the document to a temp file and renames it into place.
func (s *FileStore) persist() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".converge-state-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// encodeRecord converts a Record to its wire form.
func encodeRecord(rec *Record) (*recordJSON, error) {
	attrs := rec.Attributes
	if attrs == cty.NilVal {
		attrs = cty.EmptyObjectVal
	}
	typeRaw, err := ctyjson.MarshalType(attrs.Type())
	if err != nil {
		return nil, err
	}
	valRaw, err := ctyjson.Marshal(attrs, attrs.Type())
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, d := range rec.Dependencies {
		deps = append(deps, d.String())
	}
	sort.Strings(deps)
	return &recordJSON{
		ID:                  rec.ID,
		AttributesType:      typeRaw,
		Attributes:          valRaw,
		CreateBeforeDestroy: rec.CreateBeforeDestroy,
		PreventDestroy:      rec.PreventDestroy,
		Dependencies:        deps,
	}, nil
}

// decodeRecord converts the wire form back, reporting corruption on failure.
func decodeRecord(a addr.Address, rj *recordJSON, path string) (*Record, error) {
	ty, err := ctyjson.UnmarshalType(rj.AttributesType)
	if err != nil {
		return nil, &CorruptionError{Path: path, Err: fmt.Errorf("record %s: %w", a, err)}
	}
	val, err := ctyjson.Unmarshal(rj.Attributes, ty)
	if err != nil {
		return nil, &CorruptionError{Path: path, Err: fmt.Errorf("record %s: %w", a, err)}
	}
	var deps []addr.Address
	for _, d := range rj.Dependencies {
		da, err := addr.Parse(d)
		if err != nil {
			return nil, &CorruptionError{Path: path, Err: fmt.Errorf("record %s: %w", a, err)}
		}
		deps = append(deps, da)
	}
	return &Record{
		Addr:                a,
		ID:                  rj.ID,
		Attributes:          val,
		CreateBeforeDestroy: rj.CreateBeforeDestroy,
		PreventDestroy:      rj.PreventDestroy,
		Dependencies:        deps,
	}, nil
}
