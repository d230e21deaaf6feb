// Package mirror copies persisted artifacts (upload state, index blob) to a remote
// repository so a fresh deployment can restore them.
package mirror

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Pull when the remote has no artifact of that name.
var ErrNotFound = errors.New("mirror: artifact not found")

// Remote stores named binary artifacts.
type Remote interface {
	Pull(ctx context.Context, name string) ([]byte, error)
	Push(ctx context.Context, name string, data []byte, message string) error
}
