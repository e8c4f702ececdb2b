package spark

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// BatchClient creates batch jobs and hands out Pipeline handles. Access it
// through Client.Batch.
type BatchClient struct {
	exec      *rest.Executor
	logger    *slog.Logger
	chunkSize int
}

// BatchParams is the creation-time configuration of a batch job. The job is
// immutable once created; the client does not own it beyond its id.
type BatchParams struct {
	// Service locates the target service, as "folder/service".
	Service string

	// VersionID pins an exact service revision by id. Optional.
	VersionID string

	// Version pins a published semantic version, e.g. "0.4.2". Optional;
	// validated before submission.
	Version string

	// SourceSystem and CorrelationID are correlation metadata recorded with
	// the job.
	SourceSystem  string
	CorrelationID string

	// Worker tuning. Zero values are omitted and the server defaults apply.
	InitialWorkers int
	MaxWorkers     int

	// Accuracy is the acceptable accuracy tolerance, between 0 and 1.
	Accuracy float64
}

func (p *BatchParams) body() (map[string]any, error) {
	if p == nil || p.Service == "" {
		return nil, fmt.Errorf("%w: batch creation requires a service locator", sparkerrors.ErrInvalidInput)
	}
	body := map[string]any{"service": p.Service}
	if p.VersionID != "" {
		body["version_id"] = p.VersionID
	}
	if p.Version != "" {
		version, err := semver.NewVersion(p.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: version pin %q is not a semantic version", sparkerrors.ErrInvalidInput, p.Version)
		}
		body["version"] = version.String()
	}
	if p.SourceSystem != "" {
		body["source_system"] = p.SourceSystem
	}
	if p.CorrelationID != "" {
		body["correlation_id"] = p.CorrelationID
	}
	if p.InitialWorkers > 0 {
		body["initial_workers"] = p.InitialWorkers
	}
	if p.MaxWorkers > 0 {
		body["max_workers"] = p.MaxWorkers
	}
	if p.Accuracy > 0 {
		body["accuracy"] = p.Accuracy
	}
	return body, nil
}

// BatchJob describes a server-side batch job. The id is opaque and
// server-assigned.
type BatchJob struct {
	Object           string `json:"object,omitempty"`
	ID               string `json:"id"`
	Status           string `json:"status,omitempty"`
	ServiceID        string `json:"service_id,omitempty"`
	VersionID        string `json:"version_id,omitempty"`
	CreatedBy        string `json:"created_by,omitempty"`
	CreatedTimestamp string `json:"created_timestamp,omitempty"`
}

// Create creates a batch job for the given service and returns its
// description. Bind a Pipeline handle to it with Of.
func (b *BatchClient) Create(ctx context.Context, params *BatchParams) (*BatchJob, error) {
	body, err := params.body()
	if err != nil {
		return nil, err
	}

	res, err := b.exec.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "api/v4/batch",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var job BatchJob
	if err := res.Decode(&job); err != nil {
		return nil, err
	}
	if b.logger != nil {
		b.logger.Info("batch job created", "batch_id", job.ID, "service", params.Service)
	}
	return &job, nil
}

// Get retrieves the description of one batch job.
func (b *BatchClient) Get(ctx context.Context, id string) (*BatchJob, error) {
	if err := validateBatchID(id); err != nil {
		return nil, err
	}
	res, err := b.exec.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "api/v4/batch/" + id,
	})
	if err != nil {
		return nil, err
	}

	var job BatchJob
	if err := res.Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Status retrieves the progress snapshot of one batch job without binding a
// handle to it.
func (b *BatchClient) Status(ctx context.Context, id string) (*BatchStatus, error) {
	if err := validateBatchID(id); err != nil {
		return nil, err
	}
	res, err := b.exec.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "api/v4/batch/" + id + "/status",
	})
	if err != nil {
		return nil, err
	}

	var status BatchStatus
	if err := res.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DescribeAll lists the batch jobs visible to the caller.
func (b *BatchClient) DescribeAll(ctx context.Context) ([]BatchJob, error) {
	res, err := b.exec.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "api/v4/batch/status",
	})
	if err != nil {
		return nil, err
	}

	var listing struct {
		Data []BatchJob `json:"data"`
	}
	if err := res.Decode(&listing); err != nil {
		return nil, err
	}
	return listing.Data, nil
}

// Of binds a new Pipeline handle to an existing batch job id. The handle
// starts open with an empty chunk registry; the server remains authoritative
// for what the job has actually received.
func (b *BatchClient) Of(id string) (*Pipeline, error) {
	if err := validateBatchID(id); err != nil {
		return nil, err
	}
	return &Pipeline{
		id:        id,
		state:     PipelineOpen,
		registry:  newChunkRegistry(),
		exec:      b.exec,
		logger:    b.logger,
		chunkSize: b.chunkSize,
	}, nil
}

func validateBatchID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: batch id cannot be empty", sparkerrors.ErrInvalidInput)
	}
	return nil
}
