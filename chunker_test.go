// Package spark provides tests for dataset chunking.
package spark

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
)

// dataset builds a rectangular dataset with a header row and n data rows.
func dataset(n int) [][]any {
	rows := make([][]any, 0, n+1)
	rows = append(rows, []any{"id", "amount"})
	for i := 0; i < n; i++ {
		rows = append(rows, []any{i, float64(i) * 1.5})
	}
	return rows
}

func TestCreateChunks(t *testing.T) {
	tests := []struct {
		name       string
		records    int
		size       int
		wantChunks int
		wantLast   int
	}{
		{name: "even split", records: 10, size: 5, wantChunks: 2, wantLast: 5},
		{name: "remainder in last chunk", records: 11, size: 5, wantChunks: 3, wantLast: 1},
		{name: "single oversized chunk", records: 3, size: 100, wantChunks: 1, wantLast: 3},
		{name: "chunk per record", records: 4, size: 1, wantChunks: 4, wantLast: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := CreateChunks(dataset(tt.records), tt.size, nil, nil)
			require.NoError(t, err)
			require.Len(t, chunks, tt.wantChunks)

			total := 0
			for i, chunk := range chunks {
				assert.NotEmpty(t, chunk.ID, "chunk %d needs a generated id", i)
				assert.Equal(t, []any{"id", "amount"}, chunk.Data.Inputs[0],
					"chunk %d must carry the header row", i)
				assert.Equal(t, chunk.Size, len(chunk.Data.Inputs)-1)
				if i < len(chunks)-1 {
					assert.Equal(t, tt.size, chunk.Size)
				}
				total += chunk.Size
			}
			assert.Equal(t, tt.records, total)
			assert.Equal(t, tt.wantLast, chunks[len(chunks)-1].Size)
		})
	}
}

func TestCreateChunks_Reconstruction(t *testing.T) {
	original := dataset(23)
	chunks, err := CreateChunks(original, 7, nil, nil)
	require.NoError(t, err)

	rebuilt := [][]any{original[0]}
	for _, chunk := range chunks {
		rebuilt = append(rebuilt, chunk.Data.Inputs[1:]...)
	}
	if diff := cmp.Diff(original, rebuilt); diff != "" {
		t.Errorf("concatenated chunks do not reconstruct the dataset (-want +got):\n%s", diff)
	}
}

func TestCreateChunks_SharedParameters(t *testing.T) {
	params := map[string]any{"currency": "USD"}
	summary := map[string]any{"totals": []string{"amount"}}

	chunks, err := CreateChunks(dataset(6), 2, params, summary)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Equal(t, params, chunk.Data.Parameters)
		assert.Equal(t, summary, chunk.Data.Summary)
	}
}

func TestCreateChunks_EdgeCases(t *testing.T) {
	t.Run("empty dataset produces zero chunks", func(t *testing.T) {
		chunks, err := CreateChunks(nil, 10, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("header-only dataset produces zero chunks", func(t *testing.T) {
		chunks, err := CreateChunks([][]any{{"id", "amount"}}, 10, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("empty header row fails", func(t *testing.T) {
		_, err := CreateChunks([][]any{{}, {1, 2.5}}, 10, nil, nil)
		assert.ErrorIs(t, err, sparkerrors.ErrMissingHeader)
	})

	t.Run("non-positive size falls back to the default", func(t *testing.T) {
		chunks, err := CreateChunks(dataset(DefaultChunkSize+1), 0, nil, nil)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, DefaultChunkSize, chunks[0].Size)
		assert.Equal(t, 1, chunks[1].Size)
	})

	t.Run("generated ids are unique", func(t *testing.T) {
		chunks, err := CreateChunks(dataset(50), 1, nil, nil)
		require.NoError(t, err)
		seen := make(map[string]bool, len(chunks))
		for _, chunk := range chunks {
			require.False(t, seen[chunk.ID], "duplicate generated id %s", chunk.ID)
			seen[chunk.ID] = true
		}
	})
}

func TestChunk_RecordCount(t *testing.T) {
	tests := []struct {
		name  string
		chunk Chunk
		want  int
	}{
		{name: "explicit size wins", chunk: Chunk{Size: 7}, want: 7},
		{
			name:  "derived from inputs excluding header",
			chunk: Chunk{Data: ChunkData{Inputs: [][]any{{"h"}, {1}, {2}}}},
			want:  2,
		},
		{name: "empty chunk", chunk: Chunk{}, want: 0},
		{name: "header only", chunk: Chunk{Data: ChunkData{Inputs: [][]any{{"h"}}}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chunk.recordCount())
		})
	}
}

func ExampleCreateChunks() {
	data := [][]any{
		{"policy", "premium"},
		{"P-1", 120.0},
		{"P-2", 85.5},
		{"P-3", 42.0},
	}
	chunks, _ := CreateChunks(data, 2, nil, nil)
	fmt.Println(len(chunks), chunks[0].Size, chunks[1].Size)
	// Output: 2 2 1
}
