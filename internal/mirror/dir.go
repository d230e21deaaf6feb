package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dir mirrors artifacts into a local directory, typically a network share or a
// volume that outlives the deployment.
type Dir struct {
	root string
}

// NewDir returns a directory mirror rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Pull reads root/name.
func (d *Dir) Pull(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read mirror file: %w", err)
	}
	return data, nil
}

// Push writes root/name via a temporary file and rename. The message is ignored.
func (d *Dir) Push(ctx context.Context, name string, data []byte, message string) error {
	target := filepath.Join(d.root, name)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write mirror file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename mirror file: %w", err)
	}
	return nil
}
