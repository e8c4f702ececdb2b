package spark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
)

// batchServer fakes the batch API surface a pipeline handle talks to: chunk
// submission, result draining, status, and lifecycle transitions.
type batchServer struct {
	mu          sync.Mutex
	chunks      []Chunk
	pulled      int
	transitions []string
	failStatus  int // when non-zero, every call fails with this status
}

func (s *batchServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.failStatus != 0 {
			w.WriteHeader(s.failStatus)
			fmt.Fprint(w, `{"message": "induced failure"}`)
			return
		}

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/chunks"):
			var envelope struct {
				Chunks []Chunk `json:"chunks"`
			}
			if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			s.chunks = append(s.chunks, envelope.Chunks...)
			json.NewEncoder(w).Encode(ChunkSubmission{
				BatchStatus:      "in_progress",
				RecordSubmitted:  s.records(),
				RecordsAvailable: s.records(),
			})

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/chunkresults"):
			maxChunks, _ := strconv.Atoi(r.URL.Query().Get("max_chunks"))
			remaining := s.chunks[s.pulled:]
			if maxChunks < len(remaining) {
				remaining = remaining[:maxChunks]
			}
			results := make([]ChunkResult, 0, len(remaining))
			for _, chunk := range remaining {
				results = append(results, ChunkResult{
					ID:      chunk.ID,
					Status:  "Success",
					Outputs: make([][]any, chunk.Size),
				})
			}
			s.pulled += len(remaining)
			json.NewEncoder(w).Encode(ChunkResults{
				Data:   results,
				Status: s.status(),
			})

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
			json.NewEncoder(w).Encode(s.status())

		case r.Method == http.MethodPatch:
			var body struct {
				BatchStatus string `json:"batch_status"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			s.transitions = append(s.transitions, body.BatchStatus)
			fmt.Fprint(w, `{}`)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (s *batchServer) records() int64 {
	var total int64
	for i := range s.chunks {
		total += int64(s.chunks[i].recordCount())
	}
	return total
}

func (s *batchServer) status() BatchStatus {
	return BatchStatus{
		BatchStatus:      "in_progress",
		RecordSubmitted:  s.records(),
		RecordsAvailable: s.records(),
		ChunksSubmitted:  int64(len(s.chunks)),
		ChunksAvailable:  int64(len(s.chunks) - s.pulled),
	}
}

func newTestPipeline(t *testing.T, srv *batchServer, opts ...Option) *Pipeline {
	t.Helper()
	server := httptest.NewServer(srv.handler())
	t.Cleanup(server.Close)

	opts = append([]Option{WithAPIKey("test-key"), WithTenant("acme"), WithMaxRetries(0)}, opts...)
	client, err := New(server.URL, opts...)
	require.NoError(t, err)

	pipeline, err := client.Batch.Of("b-77")
	require.NoError(t, err)
	return pipeline
}

func TestPipeline_Push(t *testing.T) {
	ctx := context.Background()

	t.Run("dataset is auto-chunked", func(t *testing.T) {
		srv := &batchServer{}
		pipeline := newTestPipeline(t, srv)

		submission, err := pipeline.Push(ctx, &BatchInput{Inputs: dataset(7)}, WithPushChunkSize(3))
		require.NoError(t, err)
		assert.Equal(t, int64(7), submission.RecordSubmitted)
		assert.Equal(t, PipelineStats{Chunks: 3, Records: 7}, pipeline.Stats())
		assert.Len(t, srv.chunks, 3)
	})

	t.Run("inline data becomes a single chunk", func(t *testing.T) {
		srv := &batchServer{}
		pipeline := newTestPipeline(t, srv)

		_, err := pipeline.Push(ctx, &BatchInput{Data: &ChunkData{Inputs: dataset(4)}})
		require.NoError(t, err)
		assert.Equal(t, PipelineStats{Chunks: 1, Records: 4}, pipeline.Stats())
	})

	t.Run("explicit chunks are submitted as given", func(t *testing.T) {
		srv := &batchServer{}
		pipeline := newTestPipeline(t, srv)

		_, err := pipeline.Push(ctx, &BatchInput{Chunks: []Chunk{
			{ID: "c1", Data: ChunkData{Inputs: dataset(2)}, Size: 2},
			{ID: "c2", Data: ChunkData{Inputs: dataset(1)}, Size: 1},
		}})
		require.NoError(t, err)
		require.Len(t, srv.chunks, 2)
		assert.Equal(t, "c1", srv.chunks[0].ID)
		assert.Equal(t, "c2", srv.chunks[1].ID)
	})

	t.Run("empty input is rejected", func(t *testing.T) {
		pipeline := newTestPipeline(t, &batchServer{})

		_, err := pipeline.Push(ctx, nil)
		assert.ErrorIs(t, err, sparkerrors.ErrNoData)

		_, err = pipeline.Push(ctx, &BatchInput{})
		assert.ErrorIs(t, err, sparkerrors.ErrNoData)
	})

	t.Run("failed push leaves the registry untouched", func(t *testing.T) {
		srv := &batchServer{failStatus: http.StatusInternalServerError}
		pipeline := newTestPipeline(t, srv)

		input := &BatchInput{Chunks: []Chunk{{ID: "c1", Size: 3}}}
		_, err := pipeline.Push(ctx, input, WithDuplicatePolicy(DuplicateFail))
		require.Error(t, err)
		assert.Equal(t, PipelineStats{}, pipeline.Stats())

		// The same chunk set is retriable once the server recovers.
		srv.mu.Lock()
		srv.failStatus = 0
		srv.mu.Unlock()

		_, err = pipeline.Push(ctx, input, WithDuplicatePolicy(DuplicateFail))
		require.NoError(t, err)
		assert.Equal(t, PipelineStats{Chunks: 1, Records: 3}, pipeline.Stats())
	})
}

func TestPipeline_Push_RawPayload(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		raw        string
		wantChunks int
	}{
		{
			name:       "chunks envelope",
			raw:        `{"chunks": [{"id": "c1", "size": 2}, {"id": "c2", "size": 1}]}`,
			wantChunks: 2,
		},
		{
			name:       "bare chunk list",
			raw:        `[{"id": "c1", "size": 2}]`,
			wantChunks: 1,
		},
		{
			name:       "inline dataset",
			raw:        `{"inputs": [["id", "amount"], [1, 2.5], [2, 4.0]]}`,
			wantChunks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &batchServer{}
			pipeline := newTestPipeline(t, srv)

			_, err := pipeline.Push(ctx, &BatchInput{Raw: []byte(tt.raw)})
			require.NoError(t, err)
			assert.Len(t, srv.chunks, tt.wantChunks)
		})
	}

	t.Run("unrecognized payload is rejected", func(t *testing.T) {
		pipeline := newTestPipeline(t, &batchServer{})

		_, err := pipeline.Push(ctx, &BatchInput{Raw: []byte(`{"outputs": []}`)})
		assert.ErrorIs(t, err, sparkerrors.ErrInvalidInput)
	})
}

func TestPipeline_Pull(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated pulls drain the results", func(t *testing.T) {
		srv := &batchServer{}
		pipeline := newTestPipeline(t, srv)

		_, err := pipeline.Push(ctx, &BatchInput{Inputs: dataset(6)}, WithPushChunkSize(2))
		require.NoError(t, err)

		first, err := pipeline.Pull(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, first.Data, 2)
		assert.False(t, first.Status.Pending(), "everything submitted is available")

		second, err := pipeline.Pull(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, second.Data, 1, "the cursor advanced past the drained chunks")

		third, err := pipeline.Pull(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, third.Data)
	})

	t.Run("non-positive max falls back to the default", func(t *testing.T) {
		var query string
		srv := &batchServer{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			srv.handler().ServeHTTP(w, r)
		}))
		t.Cleanup(server.Close)

		client, err := New(server.URL, WithAPIKey("test-key"))
		require.NoError(t, err)
		pipeline, err := client.Batch.Of("b-77")
		require.NoError(t, err)

		_, err = pipeline.Pull(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, "max_chunks="+strconv.Itoa(DefaultPullSize), query)
	})
}

func TestPipeline_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("close stops pushes but not pulls", func(t *testing.T) {
		srv := &batchServer{}
		pipeline := newTestPipeline(t, srv)

		_, err := pipeline.Push(ctx, &BatchInput{Inputs: dataset(3)})
		require.NoError(t, err)

		require.NoError(t, pipeline.Close(ctx))
		assert.Equal(t, PipelineClosed, pipeline.State())
		assert.Equal(t, []string{"closed"}, srv.transitions)

		_, err = pipeline.Push(ctx, &BatchInput{Inputs: dataset(1)})
		assert.ErrorIs(t, err, sparkerrors.ErrStateConflict)

		results, err := pipeline.Pull(ctx, 10)
		require.NoError(t, err, "a closed pipeline keeps draining")
		assert.Len(t, results.Data, 1)
	})

	t.Run("cancel stops pushes and pulls", func(t *testing.T) {
		srv := &batchServer{}
		pipeline := newTestPipeline(t, srv)

		require.NoError(t, pipeline.Cancel(ctx))
		assert.Equal(t, PipelineCancelled, pipeline.State())

		_, err := pipeline.Push(ctx, &BatchInput{Inputs: dataset(1)})
		assert.ErrorIs(t, err, sparkerrors.ErrStateConflict)

		_, err = pipeline.Pull(ctx, 10)
		assert.ErrorIs(t, err, sparkerrors.ErrStateConflict)

		_, err = pipeline.Status(ctx)
		assert.NoError(t, err, "status stays readable in every state")
	})

	t.Run("terminal states do not transition", func(t *testing.T) {
		pipeline := newTestPipeline(t, &batchServer{})

		require.NoError(t, pipeline.Close(ctx))
		assert.ErrorIs(t, pipeline.Close(ctx), sparkerrors.ErrStateConflict)
		assert.ErrorIs(t, pipeline.Cancel(ctx), sparkerrors.ErrStateConflict,
			"a closed pipeline cannot be cancelled")

		cancelled := newTestPipeline(t, &batchServer{})
		require.NoError(t, cancelled.Cancel(ctx))
		assert.ErrorIs(t, cancelled.Cancel(ctx), sparkerrors.ErrStateConflict)
		assert.ErrorIs(t, cancelled.Close(ctx), sparkerrors.ErrStateConflict)
	})

	t.Run("failed transition keeps the current state", func(t *testing.T) {
		srv := &batchServer{failStatus: http.StatusServiceUnavailable}
		pipeline := newTestPipeline(t, srv)

		require.Error(t, pipeline.Close(ctx))
		assert.Equal(t, PipelineOpen, pipeline.State())
	})
}

// TestPipeline_Drain walks a full batch session: submit a raw two-chunk
// payload, reject its resubmission, drain the results, and shut down.
func TestPipeline_Drain(t *testing.T) {
	ctx := context.Background()
	srv := &batchServer{}
	pipeline := newTestPipeline(t, srv)

	raw := []byte(`{"chunks": [
		{"id": "q1", "data": {"inputs": [["id"], [1], [2]]}, "size": 2},
		{"id": "q2", "data": {"inputs": [["id"], [3]]}, "size": 1}
	]}`)

	submission, err := pipeline.Push(ctx, &BatchInput{Raw: raw}, WithDuplicatePolicy(DuplicateFail))
	require.NoError(t, err)
	assert.Equal(t, int64(3), submission.RecordSubmitted)
	assert.Equal(t, PipelineStats{Chunks: 2, Records: 3}, pipeline.Stats())

	_, err = pipeline.Push(ctx, &BatchInput{Raw: raw}, WithDuplicatePolicy(DuplicateFail))
	assert.ErrorIs(t, err, sparkerrors.ErrDuplicateChunk, "resubmitting the same ids is rejected")

	status, err := pipeline.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Pending())

	results, err := pipeline.Pull(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results.Data, 2)
	assert.Equal(t, "q1", results.Data[0].ID)
	assert.Equal(t, "q2", results.Data[1].ID)

	require.NoError(t, pipeline.Close(ctx))
	assert.ErrorIs(t, pipeline.Cancel(ctx), sparkerrors.ErrStateConflict,
		"the pipeline already reached a terminal state")
}
