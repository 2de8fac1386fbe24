// Package inistore provides sectioned key/value storage backed by a single INI file.
package inistore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrMalformed indicates the backing file exists but could not be parsed.
var ErrMalformed = errors.New("inistore: malformed file")

func init() {
	// Key=Value without alignment padding, matching profile-string files.
	ini.PrettyFormat = false
}

// Store reads and writes string values addressed by (section, key).
// A missing backing file behaves as an empty store and is only created on Save.
// Section and key names match case-insensitively; existing names keep their
// spelling when updated.
type Store struct {
	path   string
	file   *ini.File
	exists bool
}

// Open loads the file at path. A missing file is not an error.
func Open(path string) (*Store, error) {
	exists := true
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("inistore: stat %s: %w", path, err)
		}
		exists = false
	}

	file := ini.Empty()
	if exists {
		loaded, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
		}
		file = loaded
	}

	return &Store{path: path, file: file, exists: exists}, nil
}

// New returns an empty store for path without reading it. Save replaces
// whatever the file held.
func New(path string) *Store {
	return &Store{path: path, file: ini.Empty()}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the backing file existed at Open or has been saved since.
func (s *Store) Exists() bool {
	return s.exists
}

// Read returns the value for (section, key), or def when either is absent.
func (s *Store) Read(section, key, def string) string {
	k := s.lookupKey(section, key)
	if k == nil {
		return def
	}
	return k.String()
}

// KeyExists reports whether key is present in section. A key holding an
// empty value is present.
func (s *Store) KeyExists(section, key string) bool {
	return s.lookupKey(section, key) != nil
}

// Set upserts (section, key) in memory, creating the section when needed.
func (s *Store) Set(section, key, value string) {
	sec := s.lookupSection(section)
	if sec == nil {
		sec = s.file.Section(section)
	}
	if k := findKey(sec, key); k != nil {
		k.SetValue(value)
		return
	}
	sec.Key(key).SetValue(value)
}

// ClearSection removes section and its keys in memory. A later Set recreates
// it at the end of the file.
func (s *Store) ClearSection(section string) {
	for _, name := range s.matchingSections(section) {
		s.file.DeleteSection(name)
	}
}

// Save rewrites the backing file with the current contents.
func (s *Store) Save() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("inistore: creating %s: %w", dir, err)
		}
	}
	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("inistore: saving %s: %w", s.path, err)
	}
	s.exists = true
	return nil
}

// Write upserts (section, key) and saves the file.
func (s *Store) Write(section, key, value string) error {
	s.Set(section, key, value)
	return s.Save()
}

// DeleteKey removes key from section and saves the file. Deleting an absent
// key is a no-op that still succeeds.
func (s *Store) DeleteKey(section, key string) error {
	sec := s.lookupSection(section)
	if sec == nil {
		return nil
	}
	k := findKey(sec, key)
	if k == nil {
		return nil
	}
	sec.DeleteKey(k.Name())
	return s.Save()
}

// DeleteSection removes section and all its keys, then saves the file.
func (s *Store) DeleteSection(section string) error {
	names := s.matchingSections(section)
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		s.file.DeleteSection(name)
	}
	return s.Save()
}

func (s *Store) matchingSections(section string) []string {
	var names []string
	for _, sec := range s.file.Sections() {
		if strings.EqualFold(sec.Name(), section) {
			names = append(names, sec.Name())
		}
	}
	return names
}

func (s *Store) lookupSection(section string) *ini.Section {
	for _, sec := range s.file.Sections() {
		if strings.EqualFold(sec.Name(), section) {
			return sec
		}
	}
	return nil
}

func (s *Store) lookupKey(section, key string) *ini.Key {
	sec := s.lookupSection(section)
	if sec == nil {
		return nil
	}
	return findKey(sec, key)
}

func findKey(sec *ini.Section, key string) *ini.Key {
	for _, k := range sec.Keys() {
		if strings.EqualFold(k.Name(), key) {
			return k
		}
	}
	return nil
}
