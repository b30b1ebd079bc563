package artifact

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"chromebridge/pkg/utils"
)

// ErrNoArtifacts is returned by Latest when nothing has been stored yet.
var ErrNoArtifacts = errors.New("no artifacts stored")

// Store keeps screenshot payloads on disk so tool results stay small.
// Filenames carry an 8-char hex timestamp prefix plus a SHA-256 of the
// content, which makes saves idempotent and age checks stat-free.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// SaveDataURL decodes a data: URL and writes the payload to disk.
// Returns the file path and payload size.
func (s *Store) SaveDataURL(dataURL string) (string, int, error) {
	header, b64, found := strings.Cut(dataURL, ",")
	if !found || !strings.HasPrefix(header, "data:") {
		return "", 0, fmt.Errorf("not a data URL")
	}

	declaredMime := strings.TrimPrefix(header, "data:")
	if i := strings.IndexByte(declaredMime, ';'); i >= 0 {
		declaredMime = declaredMime[:i]
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", 0, fmt.Errorf("failed to decode data URL payload: %w", err)
	}

	// Prefer the sniffed type; fall back to whatever the URL declared.
	sniffedMime, ext := utils.DetectMimeAndExt(data)
	if sniffedMime == "application/octet-stream" && declaredMime != "" {
		ext = utils.ExtForMime(declaredMime)
	}

	hash := sha256.Sum256(data)
	fileName := fmt.Sprintf("%s%s%s", utils.TimestampPrefix(), hex.EncodeToString(hash[:]), ext)
	path := filepath.Join(s.dir, fileName)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Identical content saved within the same second already exists on
	// disk; skip the write to save IO.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", 0, fmt.Errorf("failed to save artifact: %w", err)
		}
	}

	slog.Debug("Artifact saved", "path", path, "bytes", len(data), "mime", sniffedMime)
	return path, len(data), nil
}

// Latest returns the path and content of the most recently saved
// artifact, judged by the filename's timestamp prefix.
func (s *Store) Latest() (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read artifact dir: %w", err)
	}

	var (
		bestName string
		bestTime time.Time
		bestMod  time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		t, err := utils.TimeFromID(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		// The prefix has one-second resolution; mod time breaks ties.
		if bestName == "" || t.After(bestTime) || (t.Equal(bestTime) && info.ModTime().After(bestMod)) {
			bestName = entry.Name()
			bestTime = t
			bestMod = info.ModTime()
		}
	}

	if bestName == "" {
		return "", nil, ErrNoArtifacts
	}

	path := filepath.Join(s.dir, bestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return path, data, nil
}

// Sweep deletes artifacts older than maxAge and reports how many went.
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Warn("Artifact sweep skipped", "dir", s.dir, "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !utils.IsOlderThan(entry.Name(), maxAge) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Failed to remove expired artifact", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("Expired artifacts removed", "count", removed, "max_age", maxAge)
	}
	return removed
}
