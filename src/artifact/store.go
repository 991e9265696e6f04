package artifact

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const filePrefix = "screenshot_"

// ErrDeleteFailure marks a file the store could not remove. It is logged, never fatal;
// the next ClearAll retries it.
var ErrDeleteFailure = errors.New("delete failure")

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Artifact is a captured image waiting to be consumed by a query.
type Artifact struct {
	ID        int
	Name      string
	Path      string
	CreatedAt time.Time
}

// Store owns the capture directory. Every enumeration, deletion and counter access
// happens under mu so workers and the event loop never race on the same file.
type Store struct {
	mu      sync.Mutex
	dir     string
	lastID  int
	claimed map[string]struct{}
}

// New prepares dir (creating it if needed) and seeds the id counter past any
// screenshot_<n> already present.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir %s: %w", dir, err)
	}
	s := &Store{dir: dir, claimed: make(map[string]struct{})}

	pending, err := s.scan()
	if err != nil {
		return nil, err
	}
	for _, a := range pending {
		if a.ID > s.lastID {
			s.lastID = a.ID
		}
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// SaveCapture writes img as the next screenshot_<id>.png. The file only appears under its
// final name once fully written.
func (s *Store) SaveCapture(img image.Image) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create image dir %s: %w", s.dir, err)
	}

	s.lastID++
	id := s.lastID
	name := filePrefix + strconv.Itoa(id) + ".png"
	path := filepath.Join(s.dir, name)
	tmp := path + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return Artifact{}, fmt.Errorf("failed to encode capture: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return Artifact{}, fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Artifact{}, fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	a := Artifact{ID: id, Name: name, Path: path, CreatedAt: time.Now()}
	slog.Debug("artifact saved", "name", name, "bounds", img.Bounds().String())
	return a, nil
}

// ListPending returns the unclaimed image files in the directory ordered by id, then name.
func (s *Store) ListPending() ([]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unclaimed()
}

// HasPending reports whether at least one unclaimed artifact exists.
func (s *Store) HasPending() bool {
	list, err := s.ListPending()
	return err == nil && len(list) > 0
}

// Claim reserves a for a single dispatch. It fails if a is already claimed or gone.
func (s *Store) Claim(a Artifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.claimed[a.Name]; taken {
		return false
	}
	if _, err := os.Stat(a.Path); err != nil {
		return false
	}
	s.claimed[a.Name] = struct{}{}
	return true
}

// ClaimAll reserves every pending artifact and returns them in listing order.
func (s *Store) ClaimAll() ([]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.unclaimed()
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		s.claimed[a.Name] = struct{}{}
	}
	return list, nil
}

// ClaimLatest reserves the pending artifact with the highest id.
func (s *Store) ClaimLatest() (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.unclaimed()
	if err != nil || len(list) == 0 {
		return Artifact{}, false
	}
	latest := list[len(list)-1]
	s.claimed[latest.Name] = struct{}{}
	return latest, true
}

// Release returns a claimed artifact to the pending set without deleting it.
func (s *Store) Release(a Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, a.Name)
}

// Consume deletes the artifact's file. A missing file counts as success. Other failures
// are logged and returned wrapped in ErrDeleteFailure.
func (s *Store) Consume(a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claimed, a.Name)
	return s.remove(a.Path)
}

// Sweep force-removes whichever of list is still on disk and drops their claims.
func (s *Store) Sweep(list []Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, a := range list {
		delete(s.claimed, a.Name)
		if err := s.remove(a.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearAll empties the directory, read-only files included, and recreates it.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read image dir %s: %w", s.dir, err)
	}

	var errs []error
	for _, e := range entries {
		path := filepath.Join(s.dir, e.Name())
		if err := s.remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	s.claimed = make(map[string]struct{})

	if len(errs) == 0 {
		// Recreate from scratch so leftovers such as nested dirs do not survive.
		if err := os.RemoveAll(s.dir); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrDeleteFailure, s.dir, err))
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		errs = append(errs, fmt.Errorf("failed to recreate image dir %s: %w", s.dir, err))
	}

	slog.Info("image dir cleared", "dir", s.dir, "removed", len(entries), "failed", len(errs))
	return errors.Join(errs...)
}

// remove deletes path after clearing any read-only attribute. Callers hold mu.
func (s *Store) remove(path string) error {
	if err := makeWritable(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("could not clear read-only attribute", "path", path, "err", err)
	}
	err := os.RemoveAll(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	slog.Warn("failed to delete artifact", "path", path, "err", err)
	return fmt.Errorf("%w: %s: %v", ErrDeleteFailure, path, err)
}

func (s *Store) unclaimed() ([]Artifact, error) {
	all, err := s.scan()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if _, taken := s.claimed[a.Name]; !taken {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) scan() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read image dir %s: %w", s.dir, err)
	}

	var list []Artifact
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		a := Artifact{Name: e.Name(), Path: filepath.Join(s.dir, e.Name()), ID: parseID(e.Name())}
		if info, err := e.Info(); err == nil {
			a.CreatedAt = info.ModTime()
		}
		list = append(list, a)
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].ID != list[j].ID {
			return list[i].ID < list[j].ID
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// parseID extracts n from screenshot_<n>.<ext>; foreign names get 0.
func parseID(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, filePrefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, filePrefix))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
