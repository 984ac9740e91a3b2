// Package analysis runs background note analyses and records their progress
// as poll-able task status records.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/jetstream/internal/blob"
	"github.com/p-blackswan/jetstream/internal/metrics"
)

// Progress labels written to a task status record, in order.
const (
	StatusPending      = "pending"
	StatusAnalyzing    = "Analyzing notes..."
	StatusChallenges   = "Identifying key business challenges..."
	StatusStakeholders = "Summarizing stakeholder goals..."
	StatusComplete     = "complete"

	// ErrorPrefix starts the status of a failed analysis.
	ErrorPrefix = "Error during analysis: "
)

const statusWriteTimeout = 30 * time.Second

// Record is the persisted progress of one analysis. Result stays empty until
// Status is StatusComplete.
type Record struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// PendingRecord is returned for tasks with no record yet.
func PendingRecord() []byte {
	return []byte(`{"status":"pending"}`)
}

// Tracker writes and reads task status records.
type Tracker struct {
	store   blob.Store
	prefix  string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewTracker creates a tracker writing under prefix (e.g. "Jetstream").
func NewTracker(store blob.Store, prefix string, m *metrics.Metrics, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		prefix:  prefix,
		metrics: m,
		logger:  logger.With().Str("component", "status_tracker").Logger(),
	}
}

// Key returns the blob key of a task's status record.
func (t *Tracker) Key(taskID string) string {
	return fmt.Sprintf("%s/tasks/%s.json", t.prefix, taskID)
}

// Update overwrites the task's record. It is best-effort: a failed write is
// logged and counted, never returned. The write outlives ctx cancellation so a
// shutting-down analysis can still record why it stopped.
func (t *Tracker) Update(ctx context.Context, taskID, status, result string) {
	log := t.logger.With().Str("task_id", taskID).Logger()

	data, err := json.Marshal(Record{Status: status, Result: result})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode status record")
		t.metrics.RecordStatusWriteError()
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if err := t.store.Write(writeCtx, t.Key(taskID), data, blob.ContentTypeJSON); err != nil {
		log.Error().Err(err).Str("status", status).Msg("failed to update task status")
		t.metrics.RecordStatusWriteError()
		return
	}
	log.Info().Str("status", status).Msg("task status updated")
}

// Raw returns the stored record exactly as written, or blob.ErrNotFound.
func (t *Tracker) Raw(ctx context.Context, taskID string) ([]byte, error) {
	if taskID == "" || strings.ContainsAny(taskID, "/\\") {
		return nil, blob.ErrNotFound
	}
	return t.store.Read(ctx, t.Key(taskID))
}
