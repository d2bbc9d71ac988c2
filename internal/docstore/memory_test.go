package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_WriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteRecord(ctx, "Dataset", "21-1476-291", map[string]any{"id": "21-1476-291", "major": "None"}, WriteOptions{}))
	require.NoError(t, s.WriteRecord(ctx, "Dataset", "20-0000-001", map[string]any{"id": "20-0000-001", "major": "CS"}, WriteOptions{}))

	got, err := s.QueryByField(ctx, "Dataset", "id", "21-1476-291")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "21-1476-291", got[0].Key)
	assert.Equal(t, "None", got[0].Data["major"])

	none, err := s.QueryByField(ctx, "Dataset", "id", "99-9999-999")
	require.NoError(t, err)
	assert.Empty(t, none)

	other, err := s.QueryByField(ctx, "Other", "id", "21-1476-291")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemoryStore_QueryOrdersByKeyAndMatchesScalars(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteRecord(ctx, "c", "b", map[string]any{"n": 1, "ok": true}, WriteOptions{}))
	require.NoError(t, s.WriteRecord(ctx, "c", "a", map[string]any{"n": 1, "ok": false}, WriteOptions{}))
	require.NoError(t, s.WriteRecord(ctx, "c", "z", map[string]any{"n": nil}, WriteOptions{}))

	got, err := s.QueryByField(ctx, "c", "n", "1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "b", got[1].Key)

	got, err = s.QueryByField(ctx, "c", "ok", "true")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Key)
}

func TestMemoryStore_MergeAndReplace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.WriteRecord(ctx, "Dataset", "k", map[string]any{"id": "k", "major": "None"}, WriteOptions{}))
	require.NoError(t, s.WriteRecord(ctx, "Dataset", "k", map[string]any{"major": "CS"}, WriteOptions{Merge: true}))

	rec, err := s.GetRecord(ctx, "Dataset", "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "k", "major": "CS"}, rec.Data)

	require.NoError(t, s.WriteRecord(ctx, "Dataset", "k", map[string]any{"major": "Math"}, WriteOptions{}))
	rec, err = s.GetRecord(ctx, "Dataset", "k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"major": "Math"}, rec.Data)
	assert.Equal(t, 1, s.Len("Dataset"))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := map[string]any{"id": "k"}
	require.NoError(t, s.WriteRecord(ctx, "c", "k", data, WriteOptions{}))
	data["id"] = "mutated"

	rec, err := s.GetRecord(ctx, "c", "k")
	require.NoError(t, err)
	rec.Data["id"] = "mutated again"

	rec, err = s.GetRecord(ctx, "c", "k")
	require.NoError(t, err)
	assert.Equal(t, "k", rec.Data["id"])
}

func TestMemoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetRecord(ctx, "c", "missing")
	assert.True(t, IsNotFound(err))

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "GetRecord", storeErr.Op)

	err = s.WriteRecord(ctx, "c", "../escape", map[string]any{}, WriteOptions{})
	assert.True(t, IsInvalidKey(err))

	err = s.WriteRecord(ctx, "", "k", map[string]any{}, WriteOptions{})
	assert.True(t, IsInvalidKey(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.QueryByField(cancelled, "c", "id", "x")
	assert.ErrorIs(t, err, context.Canceled)
}
