package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"omniwizz/internal/domain"
	"omniwizz/pkg/zip"
)

// Artifact names inside a run directory.
const (
	PromptFile   = "prompt.txt"
	LyricsFile   = "lyrics.lrc"
	AudioFile    = "audio.wav"
	TagsFile     = "tags.json"
	EntitiesFile = "entities.json"
	StatusFile   = "status.json"
	ChordsFile   = "chords.json"
	ImagesDir    = "images"
)

var runNamePattern = regexp.MustCompile(`^\d{8}-\d{6}-[0-9a-f]{8}$`)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RunStore creates and resolves run directories under a single output root.
// Each run is partitioned into its own directory so concurrent requests never
// share files.
type RunStore struct {
	basePath string
	now      func() time.Time
}

// NewRunStore initializes a RunStore rooted at basePath.
func NewRunStore(basePath string) (*RunStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &RunStore{basePath: basePath, now: time.Now}, nil
}

// BasePath returns the configured root directory.
func (s *RunStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Create allocates a new run directory named {YYYYMMDD-HHMMSS}-{8 hex}.
func (s *RunStore) Create(ctx context.Context) (*Run, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		name := s.now().Format("20060102-150405") + "-" + suffix
		dir := filepath.Join(s.basePath, name)
		err := os.Mkdir(dir, 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: create run dir: %w", err)
		}
		return &Run{Name: name, Dir: dir}, nil
	}
	return nil, errors.New("storage: could not allocate a unique run directory")
}

// Open resolves an existing run by folder name.
func (s *RunStore) Open(name string) (*Run, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	name = strings.TrimSpace(name)
	if !ValidRunName(name) {
		return nil, fmt.Errorf("storage: %w: %q", domain.ErrInvalidRun, name)
	}
	dir := filepath.Join(s.basePath, name)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, fmt.Errorf("storage: run %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: stat run: %w", err)
	}
	return &Run{Name: name, Dir: dir}, nil
}

// ValidRunName reports whether name has the shape of a run folder.
func ValidRunName(name string) bool {
	return runNamePattern.MatchString(name)
}

// Run is one run directory.
type Run struct {
	Name string
	Dir  string
}

// Path resolves key inside the run directory. Keys are cleaned to prevent
// directory traversal.
func (r *Run) Path(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.Dir, filepath.FromSlash(cleanKey)), nil
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized key.
func (r *Run) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(r.Dir, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("storage: commit file: %w", err)
	}
	return cleanKey, nil
}

// WriteJSON stores v as indented JSON.
func (r *Run) WriteJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return r.Write(ctx, key, data)
}

// Read returns the contents of key. Missing files report domain.ErrNotFound.
func (r *Run) Read(key string) ([]byte, error) {
	p, err := r.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// ReadJSON decodes key into v.
func (r *Run) ReadJSON(key string, v any) error {
	data, err := r.Read(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is a regular file in the run.
func (r *Run) Exists(key string) bool {
	p, err := r.Path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes the listed keys. Keys that do not exist are ignored.
func (r *Run) Remove(keys ...string) error {
	for _, key := range keys {
		p, err := r.Path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: remove %s: %w", key, err)
		}
	}
	return nil
}

// SaveUpload stores the user's original file under a sanitized version of
// its own name.
func (r *Run) SaveUpload(ctx context.Context, filename string, data []byte) (string, error) {
	return r.Write(ctx, UploadName(filename), data)
}

// Files lists every file in the run as slash separated keys, sorted.
func (r *Run) Files() ([]string, error) {
	var keys []string
	err := filepath.WalkDir(r.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(r.Dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list run: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Archive writes a zip of every file in the run to w, with entries rooted
// at the run name.
func (r *Run) Archive(w io.Writer) error {
	keys, err := r.Files()
	if err != nil {
		return err
	}
	entries := make([]zip.Entry, 0, len(keys))
	for _, key := range keys {
		p := filepath.Join(r.Dir, filepath.FromSlash(key))
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("storage: stat %s: %w", key, err)
		}
		entries = append(entries, zip.Entry{
			Name:     path.Join(r.Name, key),
			Path:     p,
			Modified: info.ModTime(),
		})
	}
	return zip.Write(w, entries)
}

// UploadName reduces a client supplied filename to a safe base name.
func UploadName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	base = unsafeFileChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "upload"
	}
	switch strings.ToLower(base) {
	case PromptFile, LyricsFile, AudioFile, TagsFile, EntitiesFile, StatusFile, ChordsFile, ImagesDir:
		return "upload_" + base
	}
	return base
}

// sanitizeKey normalizes a key and prevents escaping the run root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return cleaned, nil
}
