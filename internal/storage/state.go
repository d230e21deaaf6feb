package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/mirror"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/pkg/utils"
)

// ErrStateCorrupted means the state file exists but is not valid JSON.
var ErrStateCorrupted = errors.New("upload state corrupted")

// JSONStateStore keeps the upload state in a small JSON file,
// {"processed_files": [...]}.
type JSONStateStore struct {
	path   string
	remote mirror.Remote
	logger *zap.Logger
}

// StateOption configures a JSONStateStore.
type StateOption func(*JSONStateStore)

// WithStateLogger sets the logger.
func WithStateLogger(l *zap.Logger) StateOption {
	return func(s *JSONStateStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStateMirror restores the file from remote when missing locally.
func WithStateMirror(r mirror.Remote) StateOption {
	return func(s *JSONStateStore) {
		s.remote = r
	}
}

// NewJSONStateStore returns a store for the file at path.
func NewJSONStateStore(path string, opts ...StateOption) *JSONStateStore {
	s := &JSONStateStore{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the state file location.
func (s *JSONStateStore) Path() string {
	return s.path
}

// Load reads the state. A missing file (locally and on the mirror) is an empty state.
func (s *JSONStateStore) Load(ctx context.Context) (models.UploadState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = s.pull(ctx)
		if data == nil && err == nil {
			return models.UploadState{}, nil
		}
	}
	if err != nil {
		return models.UploadState{}, fmt.Errorf("read upload state: %w", err)
	}
	var state models.UploadState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.UploadState{}, fmt.Errorf("%w: %v", ErrStateCorrupted, err)
	}
	return state.Merge(), nil
}

// Save replaces the state file atomically.
func (s *JSONStateStore) Save(ctx context.Context, state models.UploadState) error {
	state = state.Merge()
	if state.ProcessedFiles == nil {
		state.ProcessedFiles = []string{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode upload state: %w", err)
	}
	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("write upload state: %w", err)
	}
	return nil
}

// PushMirror uploads the state file to the configured mirror.
func (s *JSONStateStore) PushMirror(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read upload state: %w", err)
	}
	return s.remote.Push(ctx, filepath.Base(s.path), data, "Update app state")
}

func (s *JSONStateStore) pull(ctx context.Context) ([]byte, error) {
	if s.remote == nil {
		return nil, nil
	}
	data, err := s.remote.Pull(ctx, filepath.Base(s.path))
	if err != nil {
		if !errors.Is(err, mirror.ErrNotFound) {
			s.logger.Warn("Mirror pull failed", zap.String("path", s.path), zap.Error(err))
		}
		return nil, nil
	}
	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return nil, err
	}
	s.logger.Info("Restored upload state from mirror", zap.String("path", s.path))
	return data, nil
}
