package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const versionLayout = "20060102150405"

var versionRe = regexp.MustCompile(`^lr-(\d{14})-(\d{4,})$`)

// Version is a monotonic artifact id: a UTC second plus a sequence within it.
type Version struct {
	At  time.Time
	Seq int
}

func (v Version) String() string {
	return fmt.Sprintf("lr-%s-%04d", v.At.UTC().Format(versionLayout), v.Seq)
}

// Less orders versions by time, then sequence.
func (v Version) Less(o Version) bool {
	if !v.At.Equal(o.At) {
		return v.At.Before(o.At)
	}
	return v.Seq < o.Seq
}

func ParseVersion(s string) (Version, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, false
	}
	at, err := time.ParseInLocation(versionLayout, m[1], time.UTC)
	if err != nil {
		return Version{}, false
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, false
	}
	return Version{At: at, Seq: seq}, true
}

// NextVersion returns a version strictly greater than latest, stamped with now when possible.
func NextVersion(now time.Time, latest *Version) Version {
	v := Version{At: now.UTC().Truncate(time.Second), Seq: 1}
	if latest != nil && !latest.Less(v) {
		v = Version{At: latest.At, Seq: latest.Seq + 1}
	}
	return v
}

// FileStore keeps artifacts as <dir>/<namespace>/<version>.json. Files are
// written to a hidden temp file and renamed into place, so readers only ever
// see complete artifacts.
type FileStore struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// StoreOption configures FileStore.
type StoreOption func(*FileStore)

// WithClock overrides the version clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *FileStore) { s.now = now }
}

func NewFileStore(dir string, opts ...StoreOption) *FileStore {
	s := &FileStore{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save assigns the next version in namespace and writes the artifact atomically.
func (s *FileStore) Save(namespace string, a *Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.nsDir(namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("model store: mkdir: %w", err)
	}
	latest, err := s.latestVersion(dir)
	if err != nil {
		return "", err
	}
	v := NextVersion(s.now(), latest)

	a.Version = v.String()
	a.Namespace = namespace
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("model store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("model store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("model store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("model store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("model store: close: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, a.Version+".json")); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("model store: rename: %w", err)
	}
	return a.Version, nil
}

// Latest loads the greatest complete version in namespace, or ErrNoModel.
func (s *FileStore) Latest(namespace string) (*Artifact, error) {
	dir := s.nsDir(namespace)
	v, err := s.latestVersion(dir)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNoModel
	}
	return s.Load(namespace, v.String())
}

// Load reads one artifact by version.
func (s *FileStore) Load(namespace, version string) (*Artifact, error) {
	b, err := os.ReadFile(filepath.Join(s.nsDir(namespace), version+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoModel
		}
		return nil, fmt.Errorf("model store: read %s: %w", version, err)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("model store: decode %s: %w", version, err)
	}
	return &a, nil
}

// Versions lists complete versions in namespace, ascending.
func (s *FileStore) Versions(namespace string) ([]string, error) {
	vs, err := s.versions(s.nsDir(namespace))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out, nil
}

func (s *FileStore) latestVersion(dir string) (*Version, error) {
	vs, err := s.versions(dir)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	return &vs[len(vs)-1], nil
}

func (s *FileStore) versions(dir string) ([]Version, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("model store: list: %w", err)
	}
	var vs []Version
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if v, ok := ParseVersion(strings.TrimSuffix(name, ".json")); ok {
			vs = append(vs, v)
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
	return vs, nil
}

func (s *FileStore) nsDir(namespace string) string {
	if namespace == "" {
		return s.dir
	}
	return filepath.Join(s.dir, namespace)
}
