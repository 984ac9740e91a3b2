package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/jetstream/internal/blob"
)

// Repository loads and saves project state in a blob store.
type Repository struct {
	store  blob.Store
	prefix string
	logger zerolog.Logger
}

// NewRepository creates a repository writing under prefix (e.g. "Jetstream").
func NewRepository(store blob.Store, prefix string, logger zerolog.Logger) *Repository {
	return &Repository{
		store:  store,
		prefix: prefix,
		logger: logger.With().Str("component", "project_repository").Logger(),
	}
}

// Key returns the blob key of a project's state record.
func (r *Repository) Key(projectID string) string {
	return fmt.Sprintf("%s/%s/project_state.json", r.prefix, projectID)
}

// Load returns the stored state for projectID. A missing, unreadable or corrupt
// record yields a fresh default state; the three cases are not distinguished
// to the caller, only in the log.
func (r *Repository) Load(ctx context.Context, projectID string) *State {
	log := r.logger.With().Str("project_id", projectID).Logger()

	data, err := r.store.Read(ctx, r.Key(projectID))
	if errors.Is(err, blob.ErrNotFound) {
		log.Debug().Msg("no stored state, starting new project")
		return NewState(projectID)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to read project state, starting from defaults")
		return NewState(projectID)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		log.Warn().Err(err).Msg("corrupt project state, starting from defaults")
		return NewState(projectID)
	}
	st.normalize(projectID)
	return &st
}

// Save overwrites the stored record with st.
func (r *Repository) Save(ctx context.Context, st *State) error {
	st.normalize(st.ProjectID)
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project state: %w", err)
	}
	if err := r.store.Write(ctx, r.Key(st.ProjectID), data, blob.ContentTypeJSON); err != nil {
		return fmt.Errorf("save project state %s: %w", st.ProjectID, err)
	}
	return nil
}
