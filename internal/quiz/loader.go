package quiz

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader loads quiz documents from a directory tree. Files ending in .yaml,
// .yml or .json are read; JSON is parsed as YAML.
type Loader struct {
	rootDir string
	quizzes map[string]Quiz
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewLoader creates a loader and loads every quiz under rootDir.
func NewLoader(rootDir string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		rootDir: rootDir,
		quizzes: make(map[string]Quiz),
		logger:  logger,
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading quizzes: %w", err)
	}

	logger.Info("quizzes loaded", "dir", rootDir, "quizzes", len(l.quizzes))
	return l, nil
}

// Get returns a loaded quiz by ID.
func (l *Loader) Get(id string) (Quiz, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q, ok := l.quizzes[id]
	return q, ok
}

// All returns every loaded quiz ordered by ID.
func (l *Loader) All() []Quiz {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Quiz, 0, len(l.quizzes))
	for _, q := range l.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			return l.loadQuiz(path)
		}
		return nil
	})
}

func (l *Loader) loadQuiz(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var q Quiz
	if err := yaml.Unmarshal(data, &q); err != nil {
		l.logger.Warn("skipping invalid quiz file", "path", path, "error", err)
		return nil
	}

	if q.ID == "" {
		// Files named after the quiz may omit the id.
		q.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(q.Questions) == 0 && len(q.Legacy) == 0 {
		l.logger.Warn("skipping quiz file without questions", "path", path)
		return nil
	}

	l.mu.Lock()
	l.quizzes[q.ID] = q
	l.mu.Unlock()

	return nil
}
