// Package taskstore implements C13: the single-writer durable store for
// DownloadTask, backed by Postgres (primary) or sqlite (dev/embedded
// alternate, see sqlite.go).
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/db"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// ErrNotFound is returned when a task_id has no matching row.
var ErrNotFound = eris.New("taskstore: task not found")

// Store is the persistence contract for DownloadTask, matching
// spec.md §4.13's four operations.
type Store interface {
	Create(ctx context.Context, saveDir string, refs []string) (*model.DownloadTask, error)
	UpdateStatus(ctx context.Context, taskID string, status model.TaskStatus) error
	UpdateItem(ctx context.Context, taskID, uploadInfoID string, outcome model.ItemOutcome) error
	Get(ctx context.Context, taskID string) (*model.DownloadTask, error)
}

// PostgresStore implements Store over a download_task table with JSONB
// per_item/progress columns, generalized from the teacher's runs/
// run_phases pair into a single wide table (ItemOutcome is small and
// JSONB-friendly enough that a child table buys nothing).
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS download_task (
	task_id        TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	save_dir       TEXT NOT NULL,
	requested_refs JSONB NOT NULL,
	per_item       JSONB NOT NULL,
	progress       JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_download_task_status ON download_task(status);
`

// Migrate applies the download_task schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "taskstore: migrate")
}

func (s *PostgresStore) Create(ctx context.Context, saveDir string, refs []string) (*model.DownloadTask, error) {
	now := time.Now().UTC()
	task := &model.DownloadTask{
		TaskID:        uuid.New().String(),
		Status:        model.TaskStatusPending,
		SaveDir:       saveDir,
		RequestedRefs: refs,
		PerItem:       make(map[string]model.ItemOutcome, len(refs)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, ref := range refs {
		task.PerItem[ref] = model.ItemOutcome{Status: model.ItemStatusPending}
	}
	task.Progress = model.ComputeProgress(task.PerItem)

	refsJSON, err := json.Marshal(task.RequestedRefs)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore: marshal requested_refs")
	}
	perItemJSON, err := json.Marshal(task.PerItem)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore: marshal per_item")
	}
	progressJSON, err := json.Marshal(task.Progress)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore: marshal progress")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO download_task (task_id, status, save_dir, requested_refs, per_item, progress, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		task.TaskID, string(task.Status), task.SaveDir, refsJSON, perItemJSON, progressJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore: insert task")
	}
	return task, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, taskID string, status model.TaskStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE download_task SET status = $1, updated_at = $2 WHERE task_id = $3`,
		string(status), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "taskstore: update status %s", taskID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateItem sets one item's outcome and recomputes progress from the
// full per_item map — never an incremental counter bump — per spec.md
// §4.13's anti-drift requirement.
func (s *PostgresStore) UpdateItem(ctx context.Context, taskID, uploadInfoID string, outcome model.ItemOutcome) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	task.PerItem[uploadInfoID] = outcome
	task.Progress = model.ComputeProgress(task.PerItem)

	perItemJSON, err := json.Marshal(task.PerItem)
	if err != nil {
		return eris.Wrap(err, "taskstore: marshal per_item")
	}
	progressJSON, err := json.Marshal(task.Progress)
	if err != nil {
		return eris.Wrap(err, "taskstore: marshal progress")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE download_task SET per_item = $1, progress = $2, updated_at = $3 WHERE task_id = $4`,
		perItemJSON, progressJSON, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "taskstore: update item %s/%s", taskID, uploadInfoID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, taskID string) (*model.DownloadTask, error) {
	var task model.DownloadTask
	var refsJSON, perItemJSON, progressJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT task_id, status, save_dir, requested_refs, per_item, progress, created_at, updated_at
		 FROM download_task WHERE task_id = $1`,
		taskID,
	).Scan(&task.TaskID, &task.Status, &task.SaveDir, &refsJSON, &perItemJSON, &progressJSON, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "taskstore: get %s", taskID)
	}

	if err := json.Unmarshal(refsJSON, &task.RequestedRefs); err != nil {
		return nil, eris.Wrap(err, "taskstore: unmarshal requested_refs")
	}
	if err := json.Unmarshal(perItemJSON, &task.PerItem); err != nil {
		return nil, eris.Wrap(err, "taskstore: unmarshal per_item")
	}
	if err := json.Unmarshal(progressJSON, &task.Progress); err != nil {
		return nil, eris.Wrap(err, "taskstore: unmarshal progress")
	}
	return &task, nil
}
