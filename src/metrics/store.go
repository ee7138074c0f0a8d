package metrics

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
)

// Extension is the container suffix tried when the literal path does not exist.
const Extension = ".npz"

// ErrNotFound marks the input artifact being absent under both the literal and
// the extension-appended name.
var ErrNotFound = errors.New("data file not found")

// SeriesSource exposes the named numeric series of the container without
// forcing callers to hold the concrete store.
type SeriesSource interface {
	Has(name string) bool
	Floats(name string) ([]float64, error)
}

// Store reads named arrays out of an npz container (a zip archive of npy
// members). Members are decoded lazily on first access and cached, so large
// series that no plot needs are never materialized.
type Store struct {
	zr      *zip.ReadCloser
	members map[string]*zip.File
	floats  map[string][]float64
	strs    map[string][]string
}

// Open opens the container at path. When path does not exist and does not
// already carry the npz extension, path+".npz" is tried before giving up.
func Open(path string) (*Store, error) {
	zr, err := zip.OpenReader(path)
	if err == nil {
		return newStore(zr), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, Extension) {
		alt := path + Extension
		zr, errAlt := zip.OpenReader(alt)
		if errAlt == nil {
			return newStore(zr), nil
		}
		if !errors.Is(errAlt, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", alt, errAlt)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
}

func newStore(zr *zip.ReadCloser) *Store {
	st := &Store{
		zr:      zr,
		members: make(map[string]*zip.File, len(zr.File)),
		floats:  make(map[string][]float64),
		strs:    make(map[string][]string),
	}
	for _, f := range zr.File {
		st.members[strings.TrimSuffix(f.Name, ".npy")] = f
	}
	return st
}

// Has reports whether a named array is present.
func (s *Store) Has(name string) bool {
	_, ok := s.members[name]
	return ok
}

// Keys returns the sorted names of all arrays in the container.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.members))
	for k := range s.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Floats returns the named array widened to float64. Any numeric or bool
// dtype is accepted; bools read as 0/1.
func (s *Store) Floats(name string) ([]float64, error) {
	if v, ok := s.floats[name]; ok {
		return v, nil
	}
	raw, err := s.member(name)
	if err != nil {
		return nil, err
	}
	v, err := decodeFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	s.floats[name] = v
	return v, nil
}

// Strings returns the named array of fixed-width numpy strings (unicode '<U'
// or bytes '|S' dtypes).
func (s *Store) Strings(name string) ([]string, error) {
	if v, ok := s.strs[name]; ok {
		return v, nil
	}
	raw, err := s.member(name)
	if err != nil {
		return nil, err
	}
	v, err := decodeStrings(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	s.strs[name] = v
	return v, nil
}

// Close releases the underlying archive. Cached arrays stay usable.
func (s *Store) Close() error {
	if s.zr == nil {
		return nil
	}
	err := s.zr.Close()
	s.zr = nil
	return err
}

func (s *Store) member(name string) ([]byte, error) {
	f, ok := s.members[name]
	if !ok {
		return nil, fmt.Errorf("series %q not present in container", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}
