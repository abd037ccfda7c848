package course

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// catalog is the on-disk layout:
//
//	[courses.bio101]
//	languages = ["en-US", "yue-HK"]
//
//	[courses.bio101.voice_configs.en-US]
//	name = "en-US-Neural2-C"
//	gender = "MALE"
//
// Files ending in .yaml or .yml use the same shape in YAML.
type catalog struct {
	Courses map[string]Course `toml:"courses" yaml:"courses"`
}

// FileStore serves course configuration from a TOML or YAML file and reloads
// it when the file changes. Events are written to the log only.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	courses map[string]Course

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileStore loads path. Call Watch to pick up later edits.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{
		path:   path,
		logger: logger.Named("course"),
		done:   make(chan struct{}),
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read course catalog: %w", err)
	}

	var c catalog
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &c)
	default:
		err = toml.Unmarshal(raw, &c)
	}
	if err != nil {
		return fmt.Errorf("parse course catalog %s: %w", s.path, err)
	}
	if c.Courses == nil {
		c.Courses = map[string]Course{}
	}

	s.mu.Lock()
	s.courses = c.Courses
	s.mu.Unlock()

	s.logger.Info("course catalog loaded",
		zap.String("path", s.path),
		zap.Int("courses", len(c.Courses)),
	)
	return nil
}

// Watch reloads the catalog on every write to the file until Close.
// Editors that replace the file are handled by watching the directory.
func (s *FileStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.watcher = w

	target := filepath.Clean(s.path)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := s.reload(); err != nil {
					s.logger.Warn("course catalog reload failed, keeping previous", zap.Error(err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("course catalog watcher error", zap.Error(err))
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

func (s *FileStore) lookup(courseID string) *Course {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[courseID]
	if !ok {
		return nil
	}
	return &c
}

func (s *FileStore) Languages(_ context.Context, courseID string) ([]string, error) {
	return languagesOrDefault(s.lookup(courseID)), nil
}

func (s *FileStore) VoiceParams(_ context.Context, courseID, language string) (Voice, bool, error) {
	v, ok := voiceFor(s.lookup(courseID), language)
	return v, ok, nil
}

func (s *FileStore) LogEvent(_ context.Context, courseID string, ev Event) {
	s.logger.Info("course event",
		zap.String("course_id", courseID),
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("context_snippet", ev.ContextSnippet),
		zap.Strings("languages", ev.Languages),
		zap.Time("timestamp", ev.Timestamp),
	)
}

// Close stops the watcher.
func (s *FileStore) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}
