// Package backup keeps full pre-change copies of corpus files so a
// consolidation can be undone.
//
// Layout under the store directory:
//
//	<UTC timestamp>-<reason>-<short id>/
//	  manifest.json
//	  files/<relative path>
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/redoc/internal/fsutil"
)

// ErrBackupNotFound is returned when a named backup does not exist.
var ErrBackupNotFound = errors.New("backup: not found")

const manifestFile = "manifest.json"

var (
	timeNow = time.Now
	newID   = uuid.NewString

	reasonRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Manifest describes one backup.
type Manifest struct {
	Name      string    `json:"name"`
	Root      string    `json:"root"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	// Files were copied and are restored byte for byte.
	Files []string `json:"files"`
	// Missing did not exist at backup time; restore deletes them.
	Missing []string `json:"missing,omitempty"`
}

// Store manages backups in one directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on
// the first backup.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the directory of a named backup.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// Create copies every file (slash paths relative to root) into a new
// backup. Files that do not exist yet are recorded as missing. Nothing is
// left behind when Create fails.
func (s *Store) Create(root, reason string, files []string) (*Manifest, error) {
	now := timeNow().UTC()
	m := &Manifest{
		Name:      backupName(now, reason),
		Root:      root,
		Reason:    reason,
		CreatedAt: now,
		Files:     []string{},
	}
	dir := s.Path(m.Name)
	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o755); err != nil {
		return nil, fmt.Errorf("backup: create %s: %w", m.Name, err)
	}

	seen := map[string]bool{}
	for _, rel := range files {
		if seen[rel] {
			continue
		}
		seen[rel] = true

		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if errors.Is(err, fs.ErrNotExist) {
			m.Missing = append(m.Missing, rel)
			continue
		}
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("backup: read %s: %w", rel, err)
		}
		if err := fsutil.WriteFileAtomic(filepath.Join(dir, "files", filepath.FromSlash(rel)), data); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("backup: copy %s: %w", rel, err)
		}
		m.Files = append(m.Files, rel)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("backup: encode manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, manifestFile), data); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("backup: write manifest: %w", err)
	}
	return m, nil
}

// Get reads the manifest of a named backup.
func (s *Store) Get(name string) (*Manifest, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrBackupNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(s.Path(name), manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrBackupNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("backup: read manifest %s: %w", name, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("backup: decode manifest %s: %w", name, err)
	}
	return &m, nil
}

// Restore puts every backed-up file back and deletes files that did not
// exist when the backup was taken. Every file is attempted; failures are
// joined into the returned error.
func (s *Store) Restore(name string) (*Manifest, error) {
	m, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, rel := range m.Files {
		data, err := os.ReadFile(filepath.Join(s.Path(name), "files", filepath.FromSlash(rel)))
		if err != nil {
			errs = append(errs, fmt.Errorf("backup: read copy of %s: %w", rel, err))
			continue
		}
		if err := fsutil.WriteFileAtomic(filepath.Join(m.Root, filepath.FromSlash(rel)), data); err != nil {
			errs = append(errs, err)
		}
	}
	for _, rel := range m.Missing {
		if err := fsutil.RemoveIfExists(filepath.Join(m.Root, filepath.FromSlash(rel))); err != nil {
			errs = append(errs, err)
		}
	}
	return m, errors.Join(errs...)
}

// List returns every backup, newest first. A missing store directory is
// an empty list.
func (s *Store) List() ([]Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}

	out := []Manifest{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := s.Get(e.Name())
		if err != nil {
			continue
		}
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func backupName(at time.Time, reason string) string {
	slug := strings.Trim(reasonRe.ReplaceAllString(strings.ToLower(reason), "-"), "-")
	if slug == "" {
		slug = "manual"
	}
	return fmt.Sprintf("%s-%s-%s", at.Format("20060102T150405Z"), slug, newID()[:8])
}
