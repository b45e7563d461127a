package study

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/pkg/dataset"
)

func artifactTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl := dataset.NewTable("fixture")
	require.NoError(t, tbl.Add(dataset.NewNumeric("x", []float64{1, 2, 3})))
	require.NoError(t, tbl.Add(dataset.NewCategorical("grp", []string{"a", "b", "a"})))
	return tbl
}

func TestArtifactStoreRoundTrip(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	tbl := artifactTable(t)

	stored, err := store.StoreTable("run_1", "trial_a", "imputed", tbl)
	require.NoError(t, err)
	assert.Equal(t, "run_1/trial_a/imputed", stored.ID)
	assert.Equal(t, "imputed", stored.Kind)
	assert.Len(t, stored.Checksum, 64)
	assert.Positive(t, stored.Size)

	loaded, got, err := store.Retrieve("run_1", "trial_a", "imputed")
	require.NoError(t, err)
	assert.Equal(t, stored.Checksum, loaded.Checksum)
	assert.Equal(t, tbl.Rows(), got.Rows())
	assert.Equal(t, tbl.Names(), got.Names())
	assert.Equal(t, tbl.Column("x").Values, got.Column("x").Values)
}

func TestArtifactStoreRetrieveMissing(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, _, err = store.Retrieve("run_1", "trial_a", "imputed")
	assert.ErrorContains(t, err, "artifact not found: run_1/trial_a/imputed")
}

func TestArtifactStoreDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	store, err := NewArtifactStore(dir, zap.NewNop())
	require.NoError(t, err)

	_, err = store.StoreTable("run_1", "trial_a", "corrupted", artifactTable(t))
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "run_1", "trial_a", "corrupted.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("x,grp\n9,z\n"), 0o644))

	_, _, err = store.Retrieve("run_1", "trial_a", "corrupted")
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestArtifactStoreListAndDelete(t *testing.T) {
	store, err := NewArtifactStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	tbl := artifactTable(t)

	_, err = store.StoreTable("run_1", "trial_b", "imputed", tbl)
	require.NoError(t, err)
	_, err = store.StoreTable("run_1", "trial_a", "corrupted", tbl)
	require.NoError(t, err)
	_, err = store.StoreTable("run_2", "trial_a", "imputed", tbl)
	require.NoError(t, err)

	artifacts, err := store.List("run_1")
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "run_1/trial_a/corrupted", artifacts[0].ID)
	assert.Equal(t, "run_1/trial_b/imputed", artifacts[1].ID)

	require.NoError(t, store.Delete("run_1"))
	artifacts, err = store.List("run_1")
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	// Other runs are untouched.
	artifacts, err = store.List("run_2")
	require.NoError(t, err)
	assert.Len(t, artifacts, 1)
}

func TestArtifactStoreRejectsEmptyDir(t *testing.T) {
	_, err := NewArtifactStore("", zap.NewNop())
	assert.ErrorContains(t, err, "needs a directory")

	store, err := NewArtifactStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	assert.ErrorContains(t, store.Delete(""), "run id")
}
