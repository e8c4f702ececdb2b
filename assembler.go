package spark

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
)

// DuplicatePolicy selects how a push handles a chunk id that the pipeline has
// already recorded. Chunk submission is not idempotent at the transport
// layer, so id handling is explicit: callers generating ids from content
// hashes usually want DuplicateIgnore, sequence-counter ids pair with
// DuplicateReplace, and strict producers use DuplicateFail.
type DuplicatePolicy string

const (
	// DuplicateIgnore skips the resubmitted chunk and keeps the original
	// registry entry.
	DuplicateIgnore DuplicatePolicy = "ignore"

	// DuplicateReplace accepts the incoming chunk under a freshly generated
	// id.
	DuplicateReplace DuplicatePolicy = "replace"

	// DuplicateFail rejects the entire push; no chunk from it is submitted.
	DuplicateFail DuplicatePolicy = "fail"
)

// PipelineStats is the client-side submission bookkeeping for one pipeline:
// how many chunks and records this handle has successfully pushed. It is
// advisory; the server remains authoritative for true submission counts.
type PipelineStats struct {
	Chunks  int
	Records int
}

// chunkRegistry tracks the chunk ids accepted through one pipeline handle.
// Entries are never removed; the registry exists to detect accidental
// resubmission and to compute running totals. It assumes serialized access,
// matching the pipeline's documented contract.
type chunkRegistry struct {
	entries map[string]int
}

func newChunkRegistry() *chunkRegistry {
	return &chunkRegistry{entries: make(map[string]int)}
}

// resolve prepares a chunk set for submission: empty ids are filled with
// generated values and ids already present in the registry (or repeated
// within the same push) are handled per the duplicate policy. The input
// slice is not modified. Under DuplicateFail the whole set is rejected, so a
// push is never partially submitted.
func (r *chunkRegistry) resolve(chunks []Chunk, policy DuplicatePolicy, logger *slog.Logger) ([]Chunk, error) {
	resolved := make([]Chunk, 0, len(chunks))
	pending := make(map[string]bool, len(chunks))

	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = uuid.NewString()
		}
		if r.seen(chunk.ID) || pending[chunk.ID] {
			switch policy {
			case DuplicateReplace:
				replacement := uuid.NewString()
				if logger != nil {
					logger.Warn("duplicate chunk id replaced",
						"chunk_id", chunk.ID, "replacement_id", replacement)
				}
				chunk.ID = replacement
			case DuplicateFail:
				return nil, fmt.Errorf("%w: %q", sparkerrors.ErrDuplicateChunk, chunk.ID)
			default: // DuplicateIgnore
				if logger != nil {
					logger.Info("duplicate chunk id ignored", "chunk_id", chunk.ID)
				}
				continue
			}
		}
		pending[chunk.ID] = true
		resolved = append(resolved, chunk)
	}
	return resolved, nil
}

// commit records a successfully submitted chunk set. Only confirmed
// submissions reach the registry, so a failed push leaves it unchanged and
// the same chunk set can be retried safely.
func (r *chunkRegistry) commit(chunks []Chunk) {
	for _, chunk := range chunks {
		r.entries[chunk.ID] = chunk.recordCount()
	}
}

func (r *chunkRegistry) seen(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// stats returns the running totals over all committed chunks.
func (r *chunkRegistry) stats() PipelineStats {
	s := PipelineStats{Chunks: len(r.entries)}
	for _, records := range r.entries {
		s.Records += records
	}
	return s
}
