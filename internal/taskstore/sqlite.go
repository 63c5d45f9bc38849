package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // pure-Go driver, registered for side effect

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for
// single-binary or local development use without a Postgres dependency
// (spec.md §9's "pick a config-selected backend" open question,
// resolved the way the teacher's internal/store/sqlite.go mirrors its
// Postgres counterpart).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a sqlite database at dsn in WAL mode.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: open")
	}
	sqlDB.SetMaxOpenConns(10)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, eris.Wrap(err, "taskstore/sqlite: ping")
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS download_task (
	task_id        TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	save_dir       TEXT NOT NULL,
	requested_refs TEXT NOT NULL,
	per_item       TEXT NOT NULL,
	progress       TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_download_task_status ON download_task(status);
`

// Migrate applies the download_task schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "taskstore/sqlite: migrate")
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, saveDir string, refs []string) (*model.DownloadTask, error) {
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
		return nil, eris.Wrap(err, "taskstore/sqlite: marshal requested_refs")
	}
	perItemJSON, err := json.Marshal(task.PerItem)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: marshal per_item")
	}
	progressJSON, err := json.Marshal(task.Progress)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: marshal progress")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO download_task (task_id, status, save_dir, requested_refs, per_item, progress, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		task.TaskID, string(task.Status), task.SaveDir, string(refsJSON), string(perItemJSON), string(progressJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: insert task")
	}
	return task, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, taskID string, status model.TaskStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE download_task SET status = ?, updated_at = ? WHERE task_id = ?`,
		string(status), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "taskstore/sqlite: update status %s", taskID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "taskstore/sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, taskID, uploadInfoID string, outcome model.ItemOutcome) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	task.PerItem[uploadInfoID] = outcome
	task.Progress = model.ComputeProgress(task.PerItem)

	perItemJSON, err := json.Marshal(task.PerItem)
	if err != nil {
		return eris.Wrap(err, "taskstore/sqlite: marshal per_item")
	}
	progressJSON, err := json.Marshal(task.Progress)
	if err != nil {
		return eris.Wrap(err, "taskstore/sqlite: marshal progress")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE download_task SET per_item = ?, progress = ?, updated_at = ? WHERE task_id = ?`,
		string(perItemJSON), string(progressJSON), time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "taskstore/sqlite: update item %s/%s", taskID, uploadInfoID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "taskstore/sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, taskID string) (*model.DownloadTask, error) {
	var task model.DownloadTask
	var refsJSON, perItemJSON, progressJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, status, save_dir, requested_refs, per_item, progress, created_at, updated_at
		 FROM download_task WHERE task_id = ?`,
		taskID,
	).Scan(&task.TaskID, &task.Status, &task.SaveDir, &refsJSON, &perItemJSON, &progressJSON, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "taskstore/sqlite: get %s", taskID)
	}

	if err := json.Unmarshal([]byte(refsJSON), &task.RequestedRefs); err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: unmarshal requested_refs")
	}
	if err := json.Unmarshal([]byte(perItemJSON), &task.PerItem); err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: unmarshal per_item")
	}
	if err := json.Unmarshal([]byte(progressJSON), &task.Progress); err != nil {
		return nil, eris.Wrap(err, "taskstore/sqlite: unmarshal progress")
	}
	return &task, nil
}
