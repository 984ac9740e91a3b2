package blob

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jserrors "github.com/p-blackswan/jetstream/internal/errors"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "blobs.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newTestSQLiteStore(t),
	}
}

func TestStore_WriteRead(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "Jetstream/acme/project_state.json"

			require.NoError(t, s.Write(ctx, key, []byte(`{"projectId":"acme"}`), ContentTypeJSON))

			got, err := s.Read(ctx, key)
			require.NoError(t, err)
			assert.JSONEq(t, `{"projectId":"acme"}`, string(got))
		})
	}
}

func TestStore_ReadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Read(context.Background(), "Jetstream/tasks/nope.json")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, err, jserrors.ErrNotFound)
		})
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "Jetstream/tasks/t1.json"

			require.NoError(t, s.Write(ctx, key, []byte(`{"status":"Analyzing notes..."}`), ContentTypeJSON))
			require.NoError(t, s.Write(ctx, key, []byte(`{"status":"complete"}`), ContentTypeJSON))

			got, err := s.Read(ctx, key)
			require.NoError(t, err)
			assert.JSONEq(t, `{"status":"complete"}`, string(got))
		})
	}
}

func TestStore_InvalidKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Write(context.Background(), "", []byte("x"), ContentTypeJSON)
			assert.ErrorIs(t, err, jserrors.ErrInvalidInput)

			err = s.Write(context.Background(), "/abs", []byte("x"), ContentTypeJSON)
			assert.ErrorIs(t, err, jserrors.ErrInvalidInput)
		})
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.Write(ctx, "Jetstream/race.json", []byte(`{"n":1}`), ContentTypeJSON))
				}()
			}
			wg.Wait()

			_, err := s.Read(ctx, "Jetstream/race.json")
			assert.NoError(t, err)
		})
	}
}

func TestStore_Ping(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte(`{"a":1}`)
	require.NoError(t, s.Write(ctx, "k", data, ContentTypeJSON))
	data[2] = 'b'

	got, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	ct, ok := s.ContentType("k")
	assert.True(t, ok)
	assert.Equal(t, ContentTypeJSON, ct)
	assert.Equal(t, 1, s.Len())
}

func TestSQLiteStore_CreatesTable(t *testing.T) {
	s := newTestSQLiteStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='blobs'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "Jetstream/p/project_state.json", []byte(`{"stage":"ESR"}`), ContentTypeJSON))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Read(ctx, "Jetstream/p/project_state.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"ESR"}`, string(got))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "o.db")}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = Open(ctx, Options{Backend: "s3"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewGCSStore_RequiresBucket(t *testing.T) {
	_, err := NewGCSStore(context.Background(), "", zerolog.Nop())
	assert.Error(t, err)
}
