package spark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// PipelineState is the lifecycle state of a client-side pipeline handle.
// Transitions are monotonic: open to closed, or open to cancelled. There is
// no transition out of a terminal state.
type PipelineState string

const (
	// PipelineOpen accepts pushes and pulls.
	PipelineOpen PipelineState = "open"

	// PipelineClosed accepts no more input; results keep draining.
	PipelineClosed PipelineState = "closed"

	// PipelineCancelled accepts neither pushes nor pulls.
	PipelineCancelled PipelineState = "cancelled"
)

// DefaultPullSize is the number of chunk results retrieved per pull when the
// caller does not choose one.
const DefaultPullSize = 100

// Pipeline is the client-side handle bound to one batch job. It tracks the
// handle's state and the chunk ids it has submitted, and exposes the batch
// operations: push, pull, status, close, cancel.
//
// A Pipeline is not safe for concurrent use. Its chunk registry assumes
// serialized pushes; callers sharing one handle across goroutines must
// provide their own synchronization.
type Pipeline struct {
	id        string
	state     PipelineState
	registry  *chunkRegistry
	exec      *rest.Executor
	logger    *slog.Logger
	chunkSize int
}

// ID returns the server-assigned batch job id this handle is bound to.
func (p *Pipeline) ID() string { return p.id }

// State returns the handle's current lifecycle state.
func (p *Pipeline) State() PipelineState { return p.state }

// Stats returns the client-side submission totals: distinct chunks and
// records accepted through this handle. Advisory only; the server is
// authoritative.
func (p *Pipeline) Stats() PipelineStats { return p.registry.stats() }

// BatchInput is the input to one push. Exactly one field must be set:
//
//   - Chunks: an explicit list of chunks, submitted as given.
//   - Data: a single inline dataset with shared parameters, wrapped into one
//     chunk.
//   - Inputs: a flat rectangular dataset (header row + data rows),
//     auto-chunked with the configured chunk size.
//   - Raw: a serialized JSON payload holding one of the above shapes.
type BatchInput struct {
	Chunks []Chunk
	Data   *ChunkData
	Inputs [][]any
	Raw    []byte
}

// PushOption tunes one push call.
type PushOption func(*pushOptions)

type pushOptions struct {
	policy     DuplicatePolicy
	chunkSize  int
	parameters map[string]any
	summary    map[string]any
}

// WithDuplicatePolicy selects how resubmitted chunk ids are handled.
// The default is DuplicateIgnore.
func WithDuplicatePolicy(policy DuplicatePolicy) PushOption {
	return func(o *pushOptions) {
		o.policy = policy
	}
}

// WithPushChunkSize overrides the pipeline's chunk size for one auto-chunked
// push.
func WithPushChunkSize(size int) PushOption {
	return func(o *pushOptions) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}

// WithPushParameters sets the shared parameters applied to every record of an
// auto-chunked push.
func WithPushParameters(parameters map[string]any) PushOption {
	return func(o *pushOptions) {
		o.parameters = parameters
	}
}

// WithPushSummary sets the summary aggregation directives for an auto-chunked
// push.
func WithPushSummary(summary map[string]any) PushOption {
	return func(o *pushOptions) {
		o.summary = summary
	}
}

// ChunkSubmission is the server's running submission counters returned by a
// successful push.
type ChunkSubmission struct {
	RequestTimestamp          string `json:"request_timestamp,omitempty"`
	BatchStatus               string `json:"batch_status,omitempty"`
	RecordSubmitted           int64  `json:"record_submitted"`
	RecordsAvailable          int64  `json:"records_available"`
	RecordsCompleted          int64  `json:"records_completed"`
	InputBufferUsedBytes      int64  `json:"input_buffer_used_bytes,omitempty"`
	InputBufferRemainingBytes int64  `json:"input_buffer_remaining_bytes,omitempty"`
}

// ChunkResult is one completed chunk of computed outputs.
type ChunkResult struct {
	ID          string         `json:"id"`
	Status      string         `json:"status,omitempty"`
	ProcessTime int64          `json:"process_time,omitempty"`
	Outputs     [][]any        `json:"outputs,omitempty"`
	Warnings    []any          `json:"warnings,omitempty"`
	Errors      []any          `json:"errors,omitempty"`
	Summary     map[string]any `json:"summary_output,omitempty"`
}

// ChunkResults is the outcome of one pull: the drained chunk results plus an
// overall status block.
type ChunkResults struct {
	Data   []ChunkResult `json:"data"`
	Status BatchStatus   `json:"status"`
}

// BatchStatus is the server-side progress snapshot for a batch job.
type BatchStatus struct {
	BatchStatus      string `json:"batch_status,omitempty"`
	PipelineStatus   string `json:"pipeline_status,omitempty"`
	RecordSubmitted  int64  `json:"record_submitted"`
	RecordsAvailable int64  `json:"records_available"`
	RecordsCompleted int64  `json:"records_completed"`
	ChunksSubmitted  int64  `json:"chunks_submitted"`
	ChunksAvailable  int64  `json:"chunks_available"`
	ChunksCompleted  int64  `json:"chunks_completed"`
	ComputeTimeMS    int64  `json:"compute_time_ms,omitempty"`
}

// Pending reports whether submitted records are still being computed, i.e.
// fewer records are available for pulling than have been submitted. This is
// the polling condition for drain loops.
func (s *BatchStatus) Pending() bool {
	return s.RecordsAvailable < s.RecordSubmitted
}

// Push submits a chunk set to the batch job. The input is resolved into
// chunks, duplicate ids are handled per the selected policy, and the
// resolved set is submitted as a single call. The registry is updated only
// after the server confirms the submission, so a failed push can be retried
// with the same chunk set.
func (p *Pipeline) Push(ctx context.Context, in *BatchInput, opts ...PushOption) (*ChunkSubmission, error) {
	if p.state != PipelineOpen {
		return nil, fmt.Errorf("%w: cannot push to a %s pipeline", sparkerrors.ErrStateConflict, p.state)
	}

	options := pushOptions{policy: DuplicateIgnore, chunkSize: p.chunkSize}
	for _, opt := range opts {
		opt(&options)
	}

	chunks, err := p.chunksFrom(in, &options)
	if err != nil {
		return nil, err
	}
	resolved, err := p.registry.resolve(chunks, options.policy, p.logger)
	if err != nil {
		return nil, err
	}

	res, err := p.exec.Do(ctx, rest.Request{
		Method: http.MethodPost,
		Path:   "api/v4/batch/" + p.id + "/chunks",
		Body:   map[string]any{"chunks": resolved},
	})
	if err != nil {
		return nil, err
	}

	var submission ChunkSubmission
	if err := res.Decode(&submission); err != nil {
		return nil, err
	}
	p.registry.commit(resolved)

	if p.logger != nil {
		stats := p.registry.stats()
		p.logger.Info("chunks pushed",
			"batch_id", p.id, "chunks", len(resolved),
			"total_chunks", stats.Chunks, "total_records", stats.Records,
			"record_submitted", submission.RecordSubmitted)
	}
	return &submission, nil
}

// Pull retrieves up to maxChunks completed chunk results together with an
// overall status block. Pull is idempotent and does not mutate the handle:
// the server advances an internal cursor, so repeated pulls drain newly
// available results. A non-positive maxChunks uses DefaultPullSize. Pulling
// is permitted on open and closed pipelines; a cancelled pipeline rejects it.
func (p *Pipeline) Pull(ctx context.Context, maxChunks int) (*ChunkResults, error) {
	if p.state == PipelineCancelled {
		return nil, fmt.Errorf("%w: cannot pull from a cancelled pipeline", sparkerrors.ErrStateConflict)
	}
	if maxChunks < 1 {
		maxChunks = DefaultPullSize
	}

	res, err := p.exec.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "api/v4/batch/" + p.id + "/chunkresults",
		Query:  url.Values{"max_chunks": []string{strconv.Itoa(maxChunks)}},
	})
	if err != nil {
		return nil, err
	}

	var results ChunkResults
	if err := res.Decode(&results); err != nil {
		return nil, err
	}
	return &results, nil
}

// Status returns the server-side progress snapshot. It is read-only and
// permitted in every state.
func (p *Pipeline) Status(ctx context.Context) (*BatchStatus, error) {
	res, err := p.exec.Do(ctx, rest.Request{
		Method: http.MethodGet,
		Path:   "api/v4/batch/" + p.id + "/status",
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

// Close signals that no more input will be pushed. The server keeps draining
// previously submitted work, so results remain pullable. Only an open
// pipeline may be closed.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.state != PipelineOpen {
		return fmt.Errorf("%w: cannot close a %s pipeline", sparkerrors.ErrStateConflict, p.state)
	}
	if err := p.transition(ctx, PipelineClosed); err != nil {
		return err
	}
	p.state = PipelineClosed
	return nil
}

// Cancel stops further result availability server-side. Transitions are
// monotonic, so only an open pipeline may be cancelled; cancelling twice is
// an error by design, signaling a caller logic bug rather than a benign
// repeat. Cancel is a logical state transition communicated to the server,
// independent from aborting an in-flight call through the context.
func (p *Pipeline) Cancel(ctx context.Context) error {
	if p.state != PipelineOpen {
		return fmt.Errorf("%w: cannot cancel a %s pipeline", sparkerrors.ErrStateConflict, p.state)
	}
	if err := p.transition(ctx, PipelineCancelled); err != nil {
		return err
	}
	p.state = PipelineCancelled
	return nil
}

// transition reports the new lifecycle state to the server.
func (p *Pipeline) transition(ctx context.Context, state PipelineState) error {
	_, err := p.exec.Do(ctx, rest.Request{
		Method: http.MethodPatch,
		Path:   "api/v4/batch/" + p.id,
		Body:   map[string]any{"batch_status": string(state)},
	})
	if err == nil && p.logger != nil {
		p.logger.Info("pipeline state changed", "batch_id", p.id, "state", string(state))
	}
	return err
}

// chunksFrom resolves a BatchInput into the chunk set to submit.
func (p *Pipeline) chunksFrom(in *BatchInput, options *pushOptions) ([]Chunk, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: push requires chunks, inline data, a dataset, or a raw payload", sparkerrors.ErrNoData)
	}
	switch {
	case len(in.Chunks) > 0:
		return in.Chunks, nil
	case in.Data != nil:
		chunk := Chunk{Data: *in.Data}
		chunk.Size = chunk.recordCount()
		return []Chunk{chunk}, nil
	case len(in.Inputs) > 0:
		return CreateChunks(in.Inputs, options.chunkSize, options.parameters, options.summary)
	case len(in.Raw) > 0:
		return parseRawChunks(in.Raw)
	default:
		return nil, fmt.Errorf("%w: push requires chunks, inline data, a dataset, or a raw payload", sparkerrors.ErrNoData)
	}
}

// parseRawChunks accepts the serialized push shapes: a {"chunks": [...]}
// envelope, a bare chunk list, or a single inline dataset.
func parseRawChunks(raw []byte) ([]Chunk, error) {
	var envelope struct {
		Chunks []Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Chunks) > 0 {
		return envelope.Chunks, nil
	}

	var chunks []Chunk
	if err := json.Unmarshal(raw, &chunks); err == nil && len(chunks) > 0 {
		return chunks, nil
	}

	var data ChunkData
	if err := json.Unmarshal(raw, &data); err == nil && len(data.Inputs) > 0 {
		chunk := Chunk{Data: data}
		chunk.Size = chunk.recordCount()
		return []Chunk{chunk}, nil
	}

	return nil, fmt.Errorf("%w: raw payload does not hold chunks, a chunk list, or an inline dataset", sparkerrors.ErrInvalidInput)
}
