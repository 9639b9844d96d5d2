package models

// TaskState represents the lifecycle state of a download task
type TaskState string

const (
	// TaskStatePending means the task is created but its goroutine has not started
	TaskStatePending TaskState = "Pending"

	// TaskStateRunning means the download is in progress
	TaskStateRunning TaskState = "Running"

	// TaskStateCompleted means discovery and all chapters were processed
	// (individual pages or chapters may still have failed)
	TaskStateCompleted TaskState = "Completed"

	// TaskStateFailed means the series itself could not be resolved
	TaskStateFailed TaskState = "Failed"
)

// String returns the string representation of TaskState
func (ts TaskState) String() string {
	return string(ts)
}

// IsFinished returns true if the task reached a terminal state
func (ts TaskState) IsFinished() bool {
	return ts == TaskStateCompleted || ts == TaskStateFailed
}

// Snapshot is a consistent, read-only copy of a task's progress.
// The first five fields are the wire format polled by clients.
type Snapshot struct {
	MangaID      string    `json:"mangaId"`
	Status       int       `json:"status"`        // 200 ok, 404 not found/invalid, other upstream/500 error
	MessageError string    `json:"message_error"` // accumulated error log
	Message      string    `json:"message"`       // accumulated message log
	Percent      float64   `json:"percent"`       // 0.0 - 100.0
	State        TaskState `json:"state"`
	Total        int       `json:"total"`
	Processed    int       `json:"processed"`
}
