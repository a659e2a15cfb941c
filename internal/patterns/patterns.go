// Package patterns reads Fabric pattern templates from the local filesystem.
//
// A pattern is a directory whose name is the pattern name and which holds a
// system.md instruction file. Nothing is cached: every call reads the disk.
package patterns

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	EnvDir     = "FABRIC_PATTERNS_DIR"
	SystemFile = "system.md"
)

var (
	ErrDirNotFound     = errors.New("Fabric patterns directory not found. Please install Fabric first.")
	ErrPatternNotFound = errors.New("pattern not found")
	ErrContentNotFound = errors.New("Pattern content (system.md) not found.")
	ErrInvalidName     = errors.New("invalid pattern name")
)

// Store resolves the patterns directory and reads from it.
type Store struct {
	// Dir, when set, skips resolution entirely.
	Dir string
	// Fallback is tried after the conventional locations.
	Fallback string

	getenv  func(string) string
	homeDir func() (string, error)
}

func New(fallback string) *Store {
	return &Store{Fallback: fallback, getenv: os.Getenv, homeDir: os.UserHomeDir}
}

// Resolve returns the patterns directory: $FABRIC_PATTERNS_DIR, then
// ~/.config/fabric/patterns, then ~/.fabric/patterns, then the fallback.
// Candidates that do not exist are skipped; when none exists the default
// ~/.config/fabric/patterns is returned anyway.
func (s *Store) Resolve() string {
	if s.Dir != "" {
		return s.Dir
	}
	getenv := s.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	homeDir := s.homeDir
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}

	home, homeErr := homeDir()
	var candidates []string
	if env := getenv(EnvDir); env != "" {
		candidates = append(candidates, env)
	}
	if homeErr == nil && home != "" {
		candidates = append(candidates,
			filepath.Join(home, ".config", "fabric", "patterns"),
			filepath.Join(home, ".fabric", "patterns"),
		)
	}
	if s.Fallback != "" {
		candidates = append(candidates, s.Fallback)
	}
	for _, c := range candidates {
		if isDir(c) {
			return c
		}
	}
	if homeErr == nil && home != "" {
		return filepath.Join(home, ".config", "fabric", "patterns")
	}
	return filepath.Join(".config", "fabric", "patterns")
}

// List returns the names of the pattern directories, sorted.
func (s *Store) List() ([]string, error) {
	dir := s.Resolve()
	if !isDir(dir) {
		return nil, ErrDirNotFound
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read patterns dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || (e.Type()&os.ModeSymlink != 0 && isDir(filepath.Join(dir, e.Name()))) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Content returns the system.md text of the named pattern.
func (s *Store) Content(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(s.Resolve(), name)
	if !isDir(dir) {
		return "", fmt.Errorf("%w: %s", ErrPatternNotFound, name)
	}
	b, err := os.ReadFile(filepath.Join(dir, SystemFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrContentNotFound
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Exists reports whether the named pattern has a system.md file.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	fi, err := os.Stat(filepath.Join(s.Resolve(), name, SystemFile))
	return err == nil && fi.Mode().IsRegular()
}

// ValidateName rejects names that would escape the patterns directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
