package spark

import (
	"fmt"

	"github.com/google/uuid"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
)

// DefaultChunkSize is the number of records per chunk when the caller does
// not choose one.
const DefaultChunkSize = 200

// ChunkData is the payload of one chunk: a rectangular dataset (header row
// followed by data rows) plus shared parameters applied to every record and
// optional summary aggregation directives.
type ChunkData struct {
	Inputs     [][]any        `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Summary    map[string]any `json:"summary,omitempty"`
}

// Chunk is one bounded-size submission unit for a batch pipeline.
type Chunk struct {
	// ID uniquely identifies the chunk within one pipeline. Empty ids are
	// filled with a generated value at push time.
	ID string `json:"id"`

	// Data holds the chunk's records and shared parameters.
	Data ChunkData `json:"data"`

	// Size is the record count excluding the header row. Derived from Data
	// when zero.
	Size int `json:"size,omitempty"`
}

// recordCount returns the chunk's record count, deriving it from the inputs
// when Size is unset.
func (c *Chunk) recordCount() int {
	if c.Size > 0 {
		return c.Size
	}
	if n := len(c.Data.Inputs); n > 1 {
		return n - 1
	}
	return 0
}

// CreateChunks splits a rectangular dataset into chunks of at most size
// records each. The first row of the dataset is its header; it is extracted
// once and prefixed onto every chunk so each chunk is independently
// interpretable. The split is deterministic and order-preserving:
// concatenating the chunks' data rows reconstructs the original dataset.
//
// An empty dataset produces zero chunks. A dataset whose first row is empty
// fails with ErrMissingHeader. A non-positive size falls back to
// DefaultChunkSize.
func CreateChunks(dataset [][]any, size int, parameters, summary map[string]any) ([]Chunk, error) {
	if len(dataset) == 0 {
		return nil, nil
	}
	header := dataset[0]
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: first dataset row must name the input columns", sparkerrors.ErrMissingHeader)
	}
	if size < 1 {
		size = DefaultChunkSize
	}

	rows := dataset[1:]
	chunks := make([]Chunk, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		inputs := make([][]any, 0, end-start+1)
		inputs = append(inputs, header)
		inputs = append(inputs, rows[start:end]...)
		chunks = append(chunks, Chunk{
			ID: uuid.NewString(),
			Data: ChunkData{
				Inputs:     inputs,
				Parameters: parameters,
				Summary:    summary,
			},
			Size: end - start,
		})
	}
	return chunks, nil
}
