package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SessionHook appends every log entry to a per-process session file,
// adapted from atomic/logging.SessionLogger's behavior (one timestamped
// file per process lifetime, written alongside whatever console output
// the caller has already configured) into a logrus.Hook so the rest of
// the module gets it by attaching the hook rather than by routing all
// logging through a bespoke writer type.
type SessionHook struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewSessionHook creates (or appends to) a session log file under logDir
// named session-<timestamp>.log.
func NewSessionHook(logDir string) (*SessionHook, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create session log dir: %w", err)
	}

	path := filepath.Join(logDir, fmt.Sprintf("session-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open session log file: %w", err)
	}

	return &SessionHook{file: file, path: path}, nil
}

// Path returns the session log file's path.
func (h *SessionHook) Path() string { return h.path }

// Close closes the session log file.
func (h *SessionHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file.Close()
}

// Levels implements logrus.Hook: the session file records everything.
func (h *SessionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *SessionHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.file.WriteString(line); err != nil {
		return err
	}
	return h.file.Sync()
}
