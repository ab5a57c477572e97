package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campfield/ticketoffice/internal/model"
)

// TaskResultRepo records scheduled background task runs in the
// scheduled_task_result table.
type TaskResultRepo struct{ DB *sql.DB }

func NewTaskResultRepo(db *sql.DB) *TaskResultRepo { return &TaskResultRepo{DB: db} }

// Insert stores one task run. Duration is persisted as integer
// milliseconds.
func (r *TaskResultRepo) Insert(ctx context.Context, res *model.ScheduledTaskResult) error {
	result, err := r.DB.ExecContext(ctx,
		`INSERT INTO scheduled_task_result (name, start_time, duration_ms, result) VALUES (?,?,?,?)`,
		res.Name, res.StartTime, res.Duration.Milliseconds(), res.Result)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// ListRecent returns the latest runs of a task, newest first.
func (r *TaskResultRepo) ListRecent(ctx context.Context, name string, limit int) ([]model.ScheduledTaskResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, start_time, duration_ms, result
         FROM scheduled_task_result WHERE name = ?
         ORDER BY start_time DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ScheduledTaskResult, 0)
	for rows.Next() {
		var t model.ScheduledTaskResult
		var ms int64
		if err := rows.Scan(&t.ID, &t.Name, &t.StartTime, &ms, &t.Result); err != nil {
			return nil, err
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}
