package eventlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"questchain/core/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndListPreservesOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	created := types.NewEvent("quest.created", "method", "create_quest", "quest_id", "1", "creator", "alice")
	completed := types.NewEvent("quest.completed", "method", "complete_quest", "quest_id", "1", "completed_by", "bob")
	transfer := types.NewEvent("quest.transferred", "method", "transfer", "from", "bob", "to", "carol")

	require.NoError(t, store.Append(ctx, 1, 100, "alice", []types.Event{*created}))
	require.NoError(t, store.Append(ctx, 2, 200, "bob", []types.Event{*completed, *transfer}))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "quest.created", all[0].Event.Type)
	require.Equal(t, uint64(2), all[2].Height)
	require.Equal(t, uint64(200), all[2].Time)
	require.Equal(t, 1, all[2].Index)
	require.Equal(t, "bob", all[2].Sender)
	require.Equal(t, transfer.Attributes, all[2].Event.Attributes)

	last, err := store.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, all[2].Sequence, last)
}

func TestListFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		id := []string{"1", "2", "3"}[i-1]
		require.NoError(t, store.Append(ctx, uint64(i), uint64(i*10), "alice", []types.Event{
			*types.NewEvent("quest.created", "method", "create_quest", "quest_id", id),
		}))
	}
	require.NoError(t, store.Append(ctx, 4, 40, "bob", []types.Event{
		*types.NewEvent("quest.completed", "method", "complete_quest", "quest_id", "2"),
	}))

	questID := uint64(2)
	byQuest, err := store.List(ctx, Filter{QuestID: &questID})
	require.NoError(t, err)
	require.Len(t, byQuest, 2)

	byType, err := store.List(ctx, Filter{Type: "quest.completed"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, uint64(4), byType[0].Height)

	page, err := store.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	rest, err := store.List(ctx, Filter{After: page[1].Sequence})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Greater(t, rest[0].Sequence, page[1].Sequence)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Append(context.Background(), 1, 1, "alice", nil))
	records, err := store.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Empty(t, records)
}
