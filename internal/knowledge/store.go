package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/storage"
	"github.com/hyperjump/iasistente/internal/vector"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ManifestFile is written next to the vectors of every index.
const ManifestFile = "manifest.yaml"

const maxOpenAttempts = 5

const legacySuffix = ".legacy"

// Store reads and writes domain indexes under a base directory.
type Store struct {
	base   string
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for load failures and legacy index warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a store rooted at base. An empty base is allowed; every operation then
// fails with a configuration error.
func NewStore(base string, opts ...Option) *Store {
	s := &Store{base: base, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns <base>/faiss_index_<domain> after checking the base and the domain.
func (s *Store) Path(domain string) (string, error) {
	if s.base == "" {
		return "", models.NewError(models.ErrConfig, "knowledge", "FAISS base path is not configured")
	}
	if err := ValidateDomain(domain); err != nil {
		return "", err
	}
	return filepath.Join(s.base, IndexDirName(domain)), nil
}

// Write persists idx and its manifest as the index for domain, replacing any previous one.
//
// Each write goes to its own hidden version directory. <base>/faiss_index_<domain> is a
// symlink to the current version and is swapped with a single rename, so a concurrent Open
// sees either the old or the new index, never a missing one. Errors are of kind ErrPersist.
func (s *Store) Write(domain string, idx *vector.FlatIndex, m models.Manifest) (string, error) {
	final, err := s.Path(domain)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.base, 0755); err != nil {
		return "", persistError(fmt.Errorf("create base dir: %w", err))
	}
	version, err := os.MkdirTemp(s.base, "."+IndexDirName(domain)+"-*")
	if err != nil {
		return "", persistError(fmt.Errorf("create version dir: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(version)
		}
	}()

	if err := idx.Save(version); err != nil {
		return "", persistError(err)
	}
	if err := writeManifest(filepath.Join(version, ManifestFile), m); err != nil {
		return "", persistError(err)
	}
	// MkdirTemp creates 0700 directories.
	if err := os.Chmod(version, 0755); err != nil {
		return "", persistError(fmt.Errorf("chmod version dir: %w", err))
	}

	previous, err := s.previousVersion(final)
	if err != nil {
		return "", persistError(err)
	}
	link := version + ".link"
	if err := os.Symlink(filepath.Base(version), link); err != nil {
		return "", persistError(fmt.Errorf("create index link: %w", err))
	}
	if err := os.Rename(link, final); err != nil {
		_ = os.Remove(link)
		if strings.HasSuffix(previous, legacySuffix) {
			_ = os.Rename(previous, final)
		}
		return "", persistError(fmt.Errorf("swap index link: %w", err))
	}
	committed = true

	if previous != "" && previous != version {
		if err := os.RemoveAll(previous); err != nil {
			s.logger.Warn("failed to remove previous index", zap.String("path", previous), zap.Error(err))
		}
	}
	return final, nil
}

// previousVersion returns the directory currently behind final so it can be removed once the
// new version is in place. An index written before versioned directories is a plain
// directory; it is moved aside first because a rename cannot replace a non-empty directory.
func (s *Store) previousVersion(final string) (string, error) {
	info, err := os.Lstat(final)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("stat previous index: %w", err)
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(final)
		if err != nil {
			return "", fmt.Errorf("read index link: %w", err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(s.base, target)
		}
		// Only versions the store created are removed.
		if filepath.Dir(target) != filepath.Clean(s.base) {
			return "", nil
		}
		return target, nil
	}
	legacy := filepath.Join(s.base, "."+filepath.Base(final)+legacySuffix)
	_ = os.RemoveAll(legacy)
	if err := os.Rename(final, legacy); err != nil {
		return "", fmt.Errorf("move previous index: %w", err)
	}
	return legacy, nil
}

func persistError(err error) error {
	return models.WrapError(models.ErrPersist, "write index", err)
}

// Open loads the index for domain. When expectedModel is non-empty and the manifest records
// a different embedding model, the load fails: query vectors would live in another space.
//
// Errors: ErrConfig (no base), ErrInvalidInput (bad domain), ErrIndexNotFound (no directory),
// ErrIndexLoad (anything wrong with the files).
func (s *Store) Open(domain, expectedModel string) (*vector.FlatIndex, *models.Manifest, error) {
	dir, err := s.Path(domain)
	if err != nil {
		return nil, nil, err
	}
	var (
		idx      *vector.FlatIndex
		manifest *models.Manifest
	)
	// A version can be removed by a concurrent Write after it was resolved. Resolve again
	// while the link keeps moving; a failure on a stable version is a real load error.
	resolved, ok := resolveDir(dir)
	for attempt := 1; ; attempt++ {
		if !ok {
			return nil, nil, models.NewError(models.ErrIndexNotFound, "knowledge", domain)
		}
		idx, manifest, err = s.load(domain, resolved, expectedModel)
		if !errors.Is(err, fs.ErrNotExist) || attempt == maxOpenAttempts {
			break
		}
		current, stillThere := resolveDir(dir)
		if stillThere && current == resolved {
			break
		}
		resolved, ok = current, stillThere
	}
	if err != nil {
		return nil, nil, s.loadFailed(domain, err)
	}
	return idx, manifest, nil
}

func (s *Store) load(domain, dir, expectedModel string) (*vector.FlatIndex, *models.Manifest, error) {
	manifest, err := ReadManifest(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, nil, statErr
		}
		s.logger.Warn("knowledge index has no manifest; skipping embedding model check",
			zap.String("domain", domain), zap.String("path", dir))
		manifest = nil
	case err != nil:
		return nil, nil, err
	}
	if manifest != nil && expectedModel != "" && manifest.EmbeddingModel != expectedModel {
		return nil, nil, fmt.Errorf("index built with embedding model %q, configured model is %q",
			manifest.EmbeddingModel, expectedModel)
	}

	idx, err := vector.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	if manifest != nil && manifest.Dimensions != 0 && manifest.Dimensions != idx.Dimensions() {
		return nil, nil, fmt.Errorf("manifest dimensions %d, vectors have %d",
			manifest.Dimensions, idx.Dimensions())
	}
	return idx, manifest, nil
}

// resolveDir follows the index link and reports whether it leads to a directory.
func resolveDir(dir string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return resolved, true
}

func (s *Store) loadFailed(domain string, err error) error {
	s.logger.Error("failed to load knowledge index", zap.String("domain", domain), zap.Error(err))
	return models.WrapError(models.ErrIndexLoad, "knowledge", err)
}

// Version identifies the on-disk state of an index. It changes whenever the index is rewritten.
type Version struct {
	ModTime time.Time
	Size    int64
}

// Version stats the vectors file of domain.
func (s *Store) Version(domain string) (Version, error) {
	dir, err := s.Path(domain)
	if err != nil {
		return Version{}, err
	}
	info, err := os.Stat(filepath.Join(dir, vector.VectorsFile))
	if err != nil {
		return Version{}, models.NewError(models.ErrIndexNotFound, "knowledge", domain)
	}
	return Version{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// List returns every index under the base directory, sorted by domain. A missing base
// directory yields an empty list.
func (s *Store) List() ([]models.DomainInfo, error) {
	if s.base == "" {
		return nil, models.NewError(models.ErrConfig, "knowledge", "FAISS base path is not configured")
	}
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read base dir: %w", err)
	}
	var out []models.DomainInfo
	for _, e := range entries {
		domain, ok := DomainFromDir(e.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(s.base, e.Name())
		resolved, ok := resolveDir(dir)
		if !ok {
			continue
		}
		info := models.DomainInfo{Name: domain, Path: dir}
		if m, err := ReadManifest(resolved); err == nil {
			info.EmbeddingModel = m.EmbeddingModel
			info.Dimensions = m.Dimensions
			info.Chunks = m.Chunks
			info.Source = m.Source
			info.CreatedAt = m.CreatedAt.UTC().Format(time.RFC3339)
		}
		if n, err := storage.DiskUsageBytes(resolved); err == nil {
			info.DiskUsageBytes = n
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadManifest reads the manifest in dir. A missing file is reported with fs.ErrNotExist.
func ReadManifest(dir string) (*models.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m models.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(path string, m models.Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
