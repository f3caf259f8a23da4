// Package archive implements the filesystem-backed archive store.
//
// Each archive is a single JSON file under the storage root, named after
// the (sanitized) archive name. The filesystem is the source of truth:
// every operation reads or writes through, there is no in-memory state.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	fileExt = ".json"

	// maxNameLen caps archive names so they stay comfortably inside
	// filename limits on every mainstream filesystem.
	maxNameLen = 100

	// DefaultNameField is the top-level payload field consulted when a
	// save request carries no explicit archive name.
	DefaultNameField = "_internalName"
)

var (
	// ErrNotFound is returned when the requested archive does not exist.
	ErrNotFound = errors.New("archive not found")

	// ErrInvalidName is returned when an archive name fails sanitization,
	// or when a save has no explicit name and no usable fallback field.
	ErrInvalidName = errors.New("invalid archive name")

	// ErrCorruptData is returned when stored content is not valid JSON.
	ErrCorruptData = errors.New("archive data is corrupted")
)

// Store persists one JSON document per archive name under a single root
// directory. It is safe for concurrent use: operations on different names
// are independent, and writes to the same name are atomic (temp file +
// rename), so readers never observe a partially written archive.
type Store struct {
	root      string
	nameField string
}

// New returns a Store rooted at dir, creating the directory if absent.
// nameField selects the payload field used as a save-name fallback; empty
// means DefaultNameField.
func New(dir, nameField string) (*Store, error) {
	if nameField == "" {
		nameField = DefaultNameField
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: root, nameField: nameField}, nil
}

// Root returns the absolute storage root directory.
func (s *Store) Root() string {
	return s.root
}

// sanitizeName enforces the naming policy. Names are rejected rather than
// rewritten, so two distinct client names can never collapse onto the same
// file.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	case len(name) > maxNameLen:
		return "", fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, maxNameLen)
	case strings.ContainsAny(name, `/\`):
		return "", fmt.Errorf("%w: name contains a path separator", ErrInvalidName)
	case strings.ContainsRune(name, 0):
		return "", fmt.Errorf("%w: name contains a NUL byte", ErrInvalidName)
	case strings.Contains(name, ".."):
		return "", fmt.Errorf("%w: name contains a parent reference", ErrInvalidName)
	case strings.HasPrefix(name, "."):
		return "", fmt.Errorf("%w: name starts with a dot", ErrInvalidName)
	}
	return name, nil
}

// resolve maps an archive name to its on-disk path. It is the only place
// paths are constructed; every operation goes through it. The containment
// check is a second line of defense behind sanitizeName: a resolved path
// must still live strictly inside the root.
func (s *Store) resolve(name string) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	p := filepath.Join(s.root, clean+fileExt)
	if !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: name escapes storage root", ErrInvalidName)
	}
	return p, nil
}

// List enumerates the stored archive names, sorted. Dotfiles (including
// in-flight temp files) and anything that is not a regular *.json file are
// skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, ".") || !strings.HasSuffix(n, fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(n, fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Load returns the stored document for name.
func (s *Store) Load(name string) (json.RawMessage, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if !json.Valid(b) {
		return nil, ErrCorruptData
	}
	return b, nil
}

// Save persists doc under name, creating or overwriting the archive. When
// name is empty, the document's internal-name field is consulted instead.
// It returns the name the archive was stored under.
func (s *Store) Save(name string, doc json.RawMessage) (string, error) {
	if len(doc) == 0 || !json.Valid(doc) {
		return "", fmt.Errorf("%w: payload is not valid JSON", ErrCorruptData)
	}
	if strings.TrimSpace(name) == "" {
		var err error
		if name, err = s.internalName(doc); err != nil {
			return "", err
		}
	}
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := s.writeAtomic(path, doc); err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}

// Delete removes the archive for name.
func (s *Store) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete archive: %w", err)
	}
	return nil
}

// writeAtomic stages data in a temp file in the same directory and renames
// it over the target, so a concurrent Load sees either the old document or
// the new one, never a truncated mix.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("flush archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// internalName extracts the fallback archive name from a document whose
// save request carried no explicit name. The field must be a top-level,
// non-empty string.
func (s *Store) internalName(doc json.RawMessage) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal(doc, &obj); err != nil {
		return "", fmt.Errorf("%w: no name given and payload is not an object", ErrInvalidName)
	}
	v, ok := obj[s.nameField]
	if !ok {
		return "", fmt.Errorf("%w: no name given and %q field is missing", ErrInvalidName, s.nameField)
	}
	str, ok := v.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", fmt.Errorf("%w: %q field is not a usable name", ErrInvalidName, s.nameField)
	}
	return str, nil
}
