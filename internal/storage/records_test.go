package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backofhouse/tally/internal/model"
)

func sampleRecord(id string) model.Record {
	return model.Record{
		ID:          id,
		Source:      model.SourceBank,
		Description: "SYSCO DALLAS",
		Amount:      -45210,
		State:       model.StateUncategorized,
	}
}

func TestSaveAndGetRecords(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()

	supplier := "sup-7"
	posCat := "Beverages"
	rec := sampleRecord("txn-1")
	rec.SupplierID = &supplier
	rec.PosCategory = &posCat

	require.NoError(t, store.SaveRecords(ctx, []model.Record{rec}))

	got, err := store.GetRecordByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.SourceBank, got.Source)
	assert.Equal(t, "SYSCO DALLAS", got.Description)
	assert.Equal(t, int64(-45210), got.Amount)
	require.NotNil(t, got.SupplierID)
	assert.Equal(t, "sup-7", *got.SupplierID)
	require.NotNil(t, got.PosCategory)
	assert.Equal(t, "Beverages", *got.PosCategory)
	assert.Equal(t, model.StateUncategorized, got.State)
	assert.Nil(t, got.CategoryID)
}

func TestSaveRecordsIgnoresDuplicates(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []model.Record{sampleRecord("txn-1")}))

	won, err := store.CategorizeRecord(ctx, "txn-1", catID)
	require.NoError(t, err)
	require.True(t, won)

	// Re-delivery of the same record must not clobber its state.
	require.NoError(t, store.SaveRecords(ctx, []model.Record{sampleRecord("txn-1")}))

	got, err := store.GetRecordByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateCategorized, got.State)
}

func TestCategorizeRecordConditionalUpdate(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []model.Record{sampleRecord("txn-1")}))

	won, err := store.CategorizeRecord(ctx, "txn-1", catID)
	require.NoError(t, err)
	assert.True(t, won)

	// The race loser's update hits zero rows and reports false, not an
	// error.
	won, err = store.CategorizeRecord(ctx, "txn-1", catID)
	require.NoError(t, err)
	assert.False(t, won)

	won, err = store.MarkRecordSplit(ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMarkRecordSplitClearsCategory(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []model.Record{sampleRecord("txn-1")}))

	won, err := store.MarkRecordSplit(ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, won)

	got, err := store.GetRecordByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateSplit, got.State)
	assert.Nil(t, got.CategoryID)
}

func TestGetUncategorizedRecords(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	records := []model.Record{
		sampleRecord("txn-1"),
		sampleRecord("txn-2"),
		sampleRecord("txn-3"),
	}
	pos := sampleRecord("sale-1")
	pos.Source = model.SourcePOS
	records = append(records, pos)
	require.NoError(t, store.SaveRecords(ctx, records))

	won, err := store.CategorizeRecord(ctx, "txn-2", catID)
	require.NoError(t, err)
	require.True(t, won)

	uncategorized, err := store.GetUncategorizedRecords(ctx, model.SourceBank, 10)
	require.NoError(t, err)
	require.Len(t, uncategorized, 2)
	assert.Equal(t, "txn-1", uncategorized[0].ID)
	assert.Equal(t, "txn-3", uncategorized[1].ID)

	limited, err := store.GetUncategorizedRecords(ctx, model.SourceBank, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAllocationsRoundTrip(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	bev, err := store.CreateCategory(ctx, "Beverage COGS")
	require.NoError(t, err)

	require.NoError(t, store.SaveRecords(ctx, []model.Record{sampleRecord("sale-1")}))

	first := &model.SplitAllocation{RecordID: "sale-1", CategoryID: catID, Amount: 560, Label: "Food"}
	second := &model.SplitAllocation{RecordID: "sale-1", CategoryID: bev.ID, Amount: 240, Label: "Beverage"}
	require.NoError(t, store.CreateAllocation(ctx, first))
	require.NoError(t, store.CreateAllocation(ctx, second))

	allocations, err := store.GetAllocationsForRecord(ctx, "sale-1")
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, int64(560), allocations[0].Amount)
	assert.Equal(t, int64(240), allocations[1].Amount)
}

func TestTransactionRollbackLeavesNothingBehind(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecords(ctx, []model.Record{sampleRecord("sale-1")}))

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	won, err := tx.MarkRecordSplit(ctx, "sale-1")
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, tx.CreateAllocation(ctx, &model.SplitAllocation{
		RecordID: "sale-1", CategoryID: catID, Amount: 800, Label: "Food",
	}))
	require.NoError(t, tx.Rollback())

	got, err := store.GetRecordByID(ctx, "sale-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateUncategorized, got.State)

	allocations, err := store.GetAllocationsForRecord(ctx, "sale-1")
	require.NoError(t, err)
	assert.Empty(t, allocations)
}
