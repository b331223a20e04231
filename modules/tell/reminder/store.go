package reminder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const maxRecordBytes = 1 << 20

// ErrDisabled reports a store whose last load failed. Its in-memory index does
// not reflect the file, so it refuses to write over it.
var ErrDisabled = errors.New("tell store disabled")

// Store owns the live reminder index and its backing file.
//
// One mutex guards every index read and mutation as well as all file I/O.
// The lock is never held across outbound sends.
type Store struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	index    *Index
	disabled bool
}

// NewStore creates a store backed by path on fs. A nil logger discards output.
func NewStore(fs afero.Fs, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		fs:     fs,
		path:   path,
		logger: logger,
		index:  NewIndex(),
	}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// EnsureFile creates an empty store file when none exists. Failures are logged.
func (s *Store) EnsureFile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exists, _ := afero.Exists(s.fs, s.path); exists {
		return
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("tell store directory create failed", "path", s.path, "error", err)
		return
	}
	file, err := s.fs.Create(s.path)
	if err != nil {
		s.logger.Warn("tell store create failed", "path", s.path, "error", err)
		return
	}
	if err := file.Close(); err != nil {
		s.logger.Warn("tell store close failed", "path", s.path, "error", err)
	}
}

// Exists reports whether the backing file is present and loaded. Tell
// features are disabled while it is missing or after a failed Load.
func (s *Store) Exists() bool {
	s.mu.Lock()
	disabled := s.disabled
	s.mu.Unlock()
	if disabled {
		return false
	}

	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		s.logger.Debug("tell store stat failed", "path", s.path, "error", err)
		return false
	}

	return exists
}

// Load replaces the live index with the file contents and returns a copy.
//
// Blank lines, lines longer than the record limit, and lines that do not
// carry five tab-separated fields are skipped. Any other failure disables the
// store until a later Load succeeds.
func (s *Store) Load() (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.readIndex()
	if err != nil {
		s.disabled = true
		return nil, fmt.Errorf("load tell store %s: %w", s.path, err)
	}

	s.index = loaded
	s.disabled = false

	return loaded.Clone(), nil
}

func (s *Store) readIndex() (*Index, error) {
	file, err := s.fs.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	loaded := NewIndex()
	reader := bufio.NewReader(file)
	for lineNumber := 1; ; lineNumber++ {
		raw, oversized, readErr := readRecord(reader)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, readErr
		}

		line := strings.TrimSpace(raw)
		switch {
		case oversized:
			s.logger.Debug("tell store skipped oversized record", "path", s.path, "line", lineNumber)
		case line == "":
		default:
			key, item, ok := decodeRecord(line)
			if !ok {
				s.logger.Debug("tell store skipped malformed record", "path", s.path, "line", lineNumber)
				break
			}
			loaded.Append(key, item)
		}

		if readErr != nil {
			return loaded, nil
		}
	}
}

// readRecord reads one newline-terminated line. Lines over maxRecordBytes are
// consumed and reported as oversized without being buffered.
func readRecord(reader *bufio.Reader) (string, bool, error) {
	var (
		line      []byte
		oversized bool
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > maxRecordBytes {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		return string(line), oversized, err
	}
}

// Save rewrites the backing file from the live index.
//
// A failed record write abandons the rest of that key's reminders and is
// logged; close failures are logged and ignored. Only failing to create the
// replacement file or to move it into place is reported.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return fmt.Errorf("save tell store %s: %w", s.path, ErrDisabled)
	}

	temp, err := afero.TempFile(s.fs, filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save tell store %s: %w", s.path, err)
	}
	tempName := temp.Name()

	for _, key := range s.index.order {
		for _, item := range s.index.entries[key] {
			if _, err := temp.WriteString(encodeRecord(key, item) + "\n"); err != nil {
				s.logger.Warn("tell store record write failed", "path", s.path, "key", key, "error", err)
				break
			}
		}
	}
	if err := temp.Close(); err != nil {
		s.logger.Debug("tell store close failed", "path", tempName, "error", err)
	}

	if err := s.fs.Rename(tempName, s.path); err != nil {
		removeErr := s.fs.Remove(tempName)
		return fmt.Errorf("save tell store %s: %w", s.path, errors.Join(err, removeErr))
	}

	return nil
}

// Append queues item for key. A disabled store drops it.
func (s *Store) Append(key string, item Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return
	}
	s.index.Append(key, item)
}

// Drain removes key and returns its reminders. ok is false when another
// caller already drained it or the store is disabled.
func (s *Store) Drain(key string) ([]Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return nil, false
	}

	return s.index.Take(key)
}

// PendingKeys returns recipient keys sorted in descending order.
func (s *Store) PendingKeys() []string {
	s.mu.Lock()
	keys := s.index.Keys()
	s.mu.Unlock()

	slices.Sort(keys)
	slices.Reverse(keys)

	return keys
}

// Snapshot returns a copy of the live index.
func (s *Store) Snapshot() *Index {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.index.Clone()
}
