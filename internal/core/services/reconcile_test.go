package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

func TestReconcile_EmptyDomain(t *testing.T) {
	h := newHarness(t)
	h.createDomain(t, "Finance", "", "")

	report, err := h.reconciler.Reconcile(context.Background(), "Finance")
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Zero(t, report.IndexCount)
	assert.Zero(t, report.RowCount)
}

func TestReconcile_UnknownDomain(t *testing.T) {
	h := newHarness(t)
	_, err := h.reconciler.Reconcile(context.Background(), "Nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconcile_EvictsOrphanedVectors(t *testing.T) {
	h := newHarness(t)
	d := h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", financeFiles)
	ctx := context.Background()

	cfg, err := h.domains.Config(ctx, "Finance")
	require.NoError(t, err)
	orphan := make([]float32, fakeDim)
	orphan[1] = 1
	require.NoError(t, h.vectors.Add(ctx, indexSpec(d, cfg), []int64{9999}, [][]float32{orphan}))

	report, err := h.reconciler.Reconcile(ctx, "Finance")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Evicted)
	assert.Zero(t, report.Restored)
	assert.Equal(t, report.RowCount+1, report.IndexCount)
	h.assertConsistent(t, "Finance")
}

func TestReconcile_RestoresMissingVectors(t *testing.T) {
	h := newHarness(t)
	d := h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", financeFiles)
	ctx := context.Background()

	cfg, err := h.domains.Config(ctx, "Finance")
	require.NoError(t, err)
	ids := h.indexIDs(t, "Finance")
	require.NotEmpty(t, ids)
	removed, err := h.vectors.Remove(ctx, indexSpec(d, cfg), ids[:1])
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	report, err := h.reconciler.Reconcile(ctx, "Finance")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Restored)
	assert.Zero(t, report.Evicted)
	h.assertConsistent(t, "Finance")

	again, err := h.reconciler.Reconcile(ctx, "Finance")
	require.NoError(t, err)
	assert.True(t, again.Clean())
}

func TestReconcile_RestoresInBatches(t *testing.T) {
	h := newHarness(t)
	d := h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", financeFiles)
	h.ingest(t, "Finance", map[string]string{
		"hiring.txt": "Hiring froze in Q3 across every regional office and team. " +
			"Contractors were retained for the audit until the end of the year. " +
			"Payroll costs fell by four percent compared with the prior quarter. " +
			"Bonuses move to the next fiscal year pending the board review. " +
			"Travel spending is capped for all departments until further notice. " +
			"Office leases in two cities will not be renewed next spring.",
	})
	ctx := context.Background()

	cfg, err := h.domains.Config(ctx, "Finance")
	require.NoError(t, err)
	ids := h.indexIDs(t, "Finance")
	require.Greater(t, len(ids), h.cfg.Embedding.BatchSize)
	_, err = h.vectors.Remove(ctx, indexSpec(d, cfg), ids)
	require.NoError(t, err)
	h.embedder.takeBatches()

	report, err := h.reconciler.Reconcile(ctx, "Finance")
	require.NoError(t, err)
	assert.Equal(t, len(ids), report.Restored)

	batches := h.embedder.takeBatches()
	size := h.cfg.Embedding.BatchSize
	assert.Len(t, batches, (len(ids)+size-1)/size)
	total := 0
	for _, n := range batches {
		assert.LessOrEqual(t, n, size)
		total += n
	}
	assert.Equal(t, len(ids), total)
	h.assertConsistent(t, "Finance")
}

func TestReconcile_UpdateConfig(t *testing.T) {
	h := newHarness(t)
	d := h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", financeFiles)
	ctx := context.Background()

	cfg, err := h.domains.Config(ctx, "Finance")
	require.NoError(t, err)
	ids := h.indexIDs(t, "Finance")
	require.Greater(t, len(ids), 1)
	_, err = h.vectors.Remove(ctx, indexSpec(d, cfg), ids)
	require.NoError(t, err)

	reloaded := h.cfg
	reloaded.Embedding.BatchSize = 1
	h.reconciler.UpdateConfig(reloaded)
	h.embedder.takeBatches()

	_, err = h.reconciler.Reconcile(ctx, "Finance")
	require.NoError(t, err)
	batches := h.embedder.takeBatches()
	assert.Len(t, batches, len(ids))
	for _, n := range batches {
		assert.Equal(t, 1, n)
	}
}

func TestReconcile_RunsBeforeIngestion(t *testing.T) {
	h := newHarness(t)
	d := h.createDomain(t, "Finance", "", "")
	h.ingest(t, "Finance", map[string]string{"q3.txt": financeFiles["q3.txt"]})
	ctx := context.Background()

	cfg, err := h.domains.Config(ctx, "Finance")
	require.NoError(t, err)
	orphan := make([]float32, fakeDim)
	require.NoError(t, h.vectors.Add(ctx, indexSpec(d, cfg), []int64{4242}, [][]float32{orphan}))

	report := h.ingest(t, "Finance", map[string]string{"budget.txt": financeFiles["budget.txt"]})
	require.NotNil(t, report.Reconcile)
	assert.Equal(t, 1, report.Reconcile.Evicted)
	h.assertConsistent(t, "Finance")
}
