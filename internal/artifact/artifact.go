package artifact

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
)

// Entry describes one artifact in the output directory
type Entry struct {
	Name string
	Size int64
}

// Store manages the normalized output directory holding final build artifacts
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the output directory path
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the output directory if it does not exist
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Collect moves files in srcDir whose base name matches pattern into the
// output directory, returning the destination paths. A missing match is
// tolerated and yields an empty result.
func (s *Store) Collect(srcDir, pattern string) ([]string, error) {
	matches, err := matchDir(srcDir, pattern)
	if err != nil {
		return nil, err
	}

	var moved []string
	for _, src := range matches {
		dest := filepath.Join(s.dir, filepath.Base(src))
		if err := moveFile(src, dest); err != nil {
			return moved, fmt.Errorf("failed to move %s: %w", src, err)
		}
		s.logger.Debug("collected artifact", "src", src, "dest", dest)
		moved = append(moved, dest)
	}

	return moved, nil
}

// Listing returns the artifacts in the output directory matching pattern
func (s *Store) Listing(pattern string) ([]Entry, error) {
	matches, err := matchDir(s.dir, pattern)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: info.Name(), Size: info.Size()})
	}

	return entries, nil
}

// FormatEntries renders artifact entries for user-facing reports,
// e.g. "msr605x-utility_1.0.0_all.deb (14 kB)".
func FormatEntries(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s (%s)", e.Name, humanize.Bytes(uint64(e.Size))))
	}
	return strings.Join(parts, ", ")
}

// RemoveMatching deletes files in dir whose base name matches any of the
// given glob patterns. Every deletion is best-effort: failures are logged
// at debug level and never abort the caller.
func RemoveMatching(logger *slog.Logger, dir string, patterns ...string) {
	for _, pattern := range patterns {
		matches, err := matchDir(dir, pattern)
		if err != nil {
			logger.Debug("stale artifact scan failed", "dir", dir, "pattern", pattern, "error", err)
			continue
		}
		for _, path := range matches {
			if err := os.Remove(path); err != nil {
				logger.Debug("stale artifact removal failed", "path", path, "error", err)
				continue
			}
			logger.Debug("removed stale artifact", "path", path)
		}
	}
}

// RemovePaths deletes the given files or directory trees. Absent targets
// are not an error; other failures are logged at debug level.
func RemovePaths(logger *slog.Logger, paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logger.Debug("cleanup removal failed", "path", path, "error", err)
			continue
		}
		logger.Debug("removed", "path", path)
	}
}

// matchDir returns the regular files directly in dir whose base name
// matches pattern. A missing directory yields an empty result.
func matchDir(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := doublestar.Match(pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}

	return matches, nil
}

// moveFile renames src to dest, falling back to copy-and-remove when the
// two paths sit on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}
