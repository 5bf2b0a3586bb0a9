package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExportCSV downloads a filtered collection as CSV into the export directory.
	TaskExportCSV = "export:csv"
	// TaskExportSweep removes exports older than the retention window.
	TaskExportSweep = "export:sweep"
)

const (
	exportMaxRetry = 3
	exportTimeout  = 5 * time.Minute
)

// ErrInvalidPayload marks a task that can never succeed.
var ErrInvalidPayload = errors.New("jobs: invalid payload")

// ExportPayload describes one asynchronous CSV export. The query holds the
// mapped filter parameters, without paging. Token is kept out of the encoded
// task; Client.EnqueueExport hands it to the TokenStore.
type ExportPayload struct {
	RequestID   string              `json:"request_id"`
	Resource    string              `json:"resource"`
	Path        string              `json:"path"`
	Query       map[string][]string `json:"query"`
	Token       string              `json:"-"`
	FileName    string              `json:"file_name"`
	RequestedBy string              `json:"requested_by,omitempty"`
}

// Validate checks the fields the export handler relies on.
func (p ExportPayload) Validate() error {
	switch {
	case p.RequestID == "":
		return fmt.Errorf("%w: request id missing", ErrInvalidPayload)
	case p.Path == "":
		return fmt.Errorf("%w: resource path missing", ErrInvalidPayload)
	}
	return nil
}

// NewExportTask constructs an Asynq task. The request id doubles as the task
// id so a double submit is rejected by the queue.
func NewExportTask(payload ExportPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportCSV, data,
		asynq.TaskID(payload.RequestID),
		asynq.MaxRetry(exportMaxRetry),
		asynq.Timeout(exportTimeout),
	), nil
}

// SweepPayload configures the export retention sweep.
type SweepPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewSweepTask constructs the periodic sweep task.
func NewSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExportSweep, data), nil
}
