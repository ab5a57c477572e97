package model

import "time"

// ScheduledTaskResult records one run of a scheduled background
// task, such as the ticket expiry reaper. The result payload is
// free-form JSON describing what the run did.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – task name (e.g. "expire-tickets").
//  StartTime – when the run started.
//  Duration  – how long the run took.
//  Result    – JSON-encoded outcome of the run.
type ScheduledTaskResult struct {
	ID        uint64        // scheduled_task_result.id
	Name      string        // scheduled_task_result.name
	StartTime time.Time     // scheduled_task_result.start_time
	Duration  time.Duration // scheduled_task_result.duration_ms
	Result    []byte        // scheduled_task_result.result (JSON)
}
