// Package blob is the key-value persistence used for project state and task
// status records. Keys are hierarchical strings ("Jetstream/tasks/<id>.json").
// Writes are unconditional: the last successful write to a key wins.
package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	jserrors "github.com/p-blackswan/jetstream/internal/errors"
)

// ErrNotFound is returned by Read when no object exists under the key.
var ErrNotFound = fmt.Errorf("blob: %w", jserrors.ErrNotFound)

// ContentTypeJSON is the content type used for every record this system writes.
const ContentTypeJSON = "application/json"

// Store defines the blob storage interface.
type Store interface {
	// Write stores data under key, replacing any previous object.
	Write(ctx context.Context, key string, data []byte, contentType string) error
	// Read returns the object stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string // gcs, sqlite or memory
	Bucket     string
	SQLitePath string
}

// Open constructs the backend named by opts.Backend.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "gcs":
		return NewGCSStore(ctx, opts.Bucket, logger)
	case "sqlite":
		return NewSQLiteStore(opts.SQLitePath, logger)
	case "memory":
		logger.Warn().Msg("using in-memory blob store; state is lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", opts.Backend)
	}
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid blob key %q: %w", key, jserrors.ErrInvalidInput)
	}
	return nil
}
