package spark

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// Default polling budget for import/export jobs. The status loop is bounded:
// once the budget is exhausted a RetryTimeoutError is returned, never an
// unbounded wait.
const (
	DefaultPollAttempts = 20
	DefaultPollInterval = 2 * time.Second
)

// ImpExClient runs export and import jobs. Both are long-running server-side
// operations: the client starts the job, then polls its status as a bounded
// sequential loop over the shared request executor. Access it through
// Client.ImpEx.
type ImpExClient struct {
	exec   *rest.Executor
	logger *slog.Logger
}

// ExportRequest starts an export of one or more services.
type ExportRequest struct {
	// Services lists the service locators to export, as "folder/service".
	Services []string

	// VersionIDs restricts the export to specific revisions. Optional.
	VersionIDs []string

	// SourceSystem and CorrelationID are correlation metadata.
	SourceSystem  string
	CorrelationID string

	// Polling budget; zero values use the defaults.
	MaxAttempts int
	Interval    time.Duration
}

// ImportRequest starts an import of previously exported artifacts.
type ImportRequest struct {
	// Data is the import manifest mapping exported artifacts to their
	// destination services.
	Data map[string]any

	// IfPresent selects the collision behavior for existing services.
	IfPresent string

	// Polling budget; zero values use the defaults.
	MaxAttempts int
	Interval    time.Duration
}

// ImpExFile is one artifact produced by a finished job.
type ImpExFile struct {
	File     string `json:"file"`
	FileName string `json:"filename,omitempty"`
}

// ImpExJob is the state of an export or import job.
type ImpExJob struct {
	ID      string `json:"id"`
	Status  string `json:"status,omitempty"`
	Outputs struct {
		Files []ImpExFile `json:"files,omitempty"`
	} `json:"outputs,omitempty"`
}

// Export starts an export job and waits for it to finish, polling its status
// within the request's bounded budget. On success the returned job carries
// the produced artifact files.
func (ix *ImpExClient) Export(ctx context.Context, req *ExportRequest) (*ImpExJob, error) {
	if req == nil || len(req.Services) == 0 {
		return nil, fmt.Errorf("export requires at least one service locator")
	}

	body := map[string]any{"services": req.Services}
	if len(req.VersionIDs) > 0 {
		body["version_ids"] = req.VersionIDs
	}
	if req.SourceSystem != "" {
		body["source_system"] = req.SourceSystem
	}
	if req.CorrelationID != "" {
		body["correlation_id"] = req.CorrelationID
	}

	job, err := ix.start(ctx, "api/v4/export", body)
	if err != nil {
		return nil, err
	}
	return ix.wait(ctx, "export", job.ID, req.MaxAttempts, req.Interval)
}

// Import starts an import job and waits for it to finish, polling its status
// within the request's bounded budget.
func (ix *ImpExClient) Import(ctx context.Context, req *ImportRequest) (*ImpExJob, error) {
	if req == nil || len(req.Data) == 0 {
		return nil, fmt.Errorf("import requires a manifest")
	}

	body := map[string]any{"data": req.Data}
	if req.IfPresent != "" {
		body["if_present"] = req.IfPresent
	}

	job, err := ix.start(ctx, "api/v4/import", body)
	if err != nil {
		return nil, err
	}
	return ix.wait(ctx, "import", job.ID, req.MaxAttempts, req.Interval)
}

func (ix *ImpExClient) start(ctx context.Context, path string, body map[string]any) (*ImpExJob, error) {
	res, err := ix.exec.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	var job ImpExJob
	if err := res.Decode(&job); err != nil {
		return nil, err
	}
	if ix.logger != nil {
		ix.logger.Info("job started", "path", path, "job_id", job.ID)
	}
	return &job, nil
}

// wait polls the job status until it reaches a terminal state or the budget
// runs out.
func (ix *ImpExClient) wait(ctx context.Context, kind, id string, maxAttempts int, interval time.Duration) (*ImpExJob, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultPollAttempts
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var last *ImpExJob
	err := rest.Poll(ctx, maxAttempts, interval, func(ctx context.Context) (bool, error) {
		res, err := ix.exec.Do(ctx, rest.Request{
			Method: http.MethodGet,
			Path:   "api/v4/" + kind + "/" + id + "/status",
		})
		if err != nil {
			return false, err
		}
		var job ImpExJob
		if err := res.Decode(&job); err != nil {
			return false, err
		}
		last = &job

		switch job.Status {
		case "closed", "completed":
			return true, nil
		case "failed", "errored", "cancelled":
			return false, fmt.Errorf("%s job %s ended in status %q", kind, id, job.Status)
		default:
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	if ix.logger != nil {
		ix.logger.Info("job finished", "kind", kind, "job_id", id, "status", last.Status)
	}
	return last, nil
}
