package config

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"

	"mdrelay/models"

	"github.com/google/uuid"
)

// DownloadTask represents a single series download. Its goroutine is the only
// writer; status requests read it concurrently through Snapshot.
type DownloadTask struct {
	ID       string // Unique ID for this task, used in logs
	SeriesID string
	Language string

	mu         sync.RWMutex
	state      models.TaskState
	total      int
	processed  int
	statusCode int
	errorLog   strings.Builder
	messageLog strings.Builder
}

// NewDownloadTask creates a pending task for seriesID
func NewDownloadTask(seriesID, language string) *DownloadTask {
	return &DownloadTask{
		ID:         uuid.NewString(),
		SeriesID:   seriesID,
		Language:   language,
		state:      models.TaskStatePending,
		statusCode: http.StatusOK,
	}
}

// Message appends a line to the message log
func (t *DownloadTask) Message(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.messageLog.WriteString(fmt.Sprintf(format, args...))
}

// Error appends to the error log. The first non-200 statusCode sticks:
// later errors never overwrite it and nothing resets it to 200.
func (t *DownloadTask) Error(statusCode int, format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	if t.statusCode == http.StatusOK && statusCode != http.StatusOK {
		t.statusCode = statusCode
	}
	t.errorLog.WriteString(fmt.Sprintf(format, args...))
}

// SetTotal fixes the number of pages to process. The total never decreases.
func (t *DownloadTask) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if total > t.total {
		t.total = total
	}
}

// Processed counts one page as handled
func (t *DownloadTask) Processed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.processed >= t.total {
		log.Printf("[Queue] WARNING: task %s processed more pages than its total (%d)", t.ID, t.total)
		return
	}
	t.processed++
}

// State returns the current lifecycle state
func (t *DownloadTask) State() models.TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state
}

// Snapshot returns a consistent copy of the task's counters and logs
func (t *DownloadTask) Snapshot() models.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return models.Snapshot{
		MangaID:      t.SeriesID,
		Status:       t.statusCode,
		MessageError: t.errorLog.String(),
		Message:      t.messageLog.String(),
		Percent:      percent(t.processed, t.total),
		State:        t.state,
		Total:        t.total,
		Processed:    t.processed,
	}
}

func (t *DownloadTask) setState(state models.TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = state
}

func percent(processed, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(processed) / float64(total) * 100.0
}

// DownloadQueue tracks at most one live task per series
type DownloadQueue struct {
	site string
	ctx  context.Context

	mu    sync.Mutex
	tasks map[string]*DownloadTask
	wg    sync.WaitGroup

	// onTaskFinished is called after a task reached a terminal state
	onTaskFinished func(*DownloadTask)
}

// NewDownloadQueue creates a queue that runs its tasks with the download
// function registered for site. Cancelling ctx stops running tasks.
func NewDownloadQueue(ctx context.Context, site string) *DownloadQueue {
	return &DownloadQueue{
		site:  site,
		ctx:   ctx,
		tasks: make(map[string]*DownloadTask),
	}
}

// SetFinishedCallback sets a function called whenever a task finishes
func (q *DownloadQueue) SetFinishedCallback(onFinished func(*DownloadTask)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.onTaskFinished = onFinished
}

// SubmitOrGet starts a download of seriesID unless one is already running.
//
//   - live task: its current snapshot is returned, nothing new is started
//   - finished task: its final snapshot is returned, it is evicted and a new
//     task is started, so a failed download is retried by asking again
//   - no task: a new one is started and its initial snapshot returned
func (q *DownloadQueue) SubmitOrGet(seriesID, language string) models.Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.tasks[seriesID]; ok {
		if !existing.State().IsFinished() {
			return existing.Snapshot()
		}

		final := existing.Snapshot()
		delete(q.tasks, seriesID)
		log.Printf("[Queue] Evicted finished task %s for %s (state: %s, status: %d)", existing.ID, seriesID, final.State, final.Status)

		q.startLocked(seriesID, language)
		return final
	}

	task := q.startLocked(seriesID, language)
	return task.Snapshot()
}

// startLocked creates and starts a task; q.mu must be held
func (q *DownloadQueue) startLocked(seriesID, language string) *DownloadTask {
	task := NewDownloadTask(seriesID, language)
	q.tasks[seriesID] = task

	log.Printf("[Queue] Added task: %s (%s, %s)", seriesID, task.ID, language)

	q.wg.Add(1)
	go q.executeTask(task)

	return task
}

// List returns snapshots of all tracked tasks ordered by series ID
func (q *DownloadQueue) List() []models.Snapshot {
	q.mu.Lock()
	tasks := make([]*DownloadTask, 0, len(q.tasks))
	for _, task := range q.tasks {
		tasks = append(tasks, task)
	}
	q.mu.Unlock()

	snapshots := make([]models.Snapshot, 0, len(tasks))
	for _, task := range tasks {
		snapshots = append(snapshots, task.Snapshot())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].MangaID < snapshots[j].MangaID
	})
	return snapshots
}

// Wait blocks until every started task has finished
func (q *DownloadQueue) Wait() {
	q.wg.Wait()
}

// executeTask runs a task to a terminal state
func (q *DownloadQueue) executeTask(task *DownloadTask) {
	defer q.wg.Done()

	task.setState(models.TaskStateRunning)
	log.Printf("[Queue] Processing task: %s (%s)", task.SeriesID, task.ID)

	err := q.runSite(task)

	if err != nil {
		task.setState(models.TaskStateFailed)
		log.Printf("[Queue] Task failed: %s (%s): %v", task.SeriesID, task.ID, err)
	} else {
		task.setState(models.TaskStateCompleted)
		log.Printf("[Queue] Task completed: %s (%s)", task.SeriesID, task.ID)
	}

	q.mu.Lock()
	onFinished := q.onTaskFinished
	q.mu.Unlock()

	if onFinished != nil {
		onFinished(task)
	}
}

// runSite dispatches to the site and turns a panic into a failed task
func (q *DownloadQueue) runSite(task *DownloadTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			task.Error(http.StatusInternalServerError, "%v\n", err)
		}
	}()

	err = ExecuteSiteDownload(q.ctx, q.site, task)
	if err != nil && task.Snapshot().Status == http.StatusOK {
		// Site failed without recording why
		task.Error(http.StatusInternalServerError, "%v\n", err)
	}
	return err
}
