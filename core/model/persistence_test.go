package model

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dummyModel struct {
	BaseEstimator
	Weights []float64
	Labels  []int
}

func TestSaveLoadModelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")

	in := &dummyModel{Weights: []float64{0.5, 1.5}, Labels: []int{0, 1, 1}}
	in.SetFitted()
	require.NoError(t, SaveModel(in, path))

	var out dummyModel
	require.NoError(t, LoadModel(&out, path))

	assert.Equal(t, in.Weights, out.Weights)
	assert.Equal(t, in.Labels, out.Labels)
	assert.True(t, out.IsFitted())
}

func TestSaveLoadModelWriter(t *testing.T) {
	var buf bytes.Buffer

	in := &dummyModel{Weights: []float64{2}, Labels: []int{7}}
	require.NoError(t, SaveModelToWriter(in, &buf))

	var out dummyModel
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, in.Weights, out.Weights)
}

func TestLoadModelMissingFile(t *testing.T) {
	var out dummyModel
	assert.Error(t, LoadModel(&out, filepath.Join(t.TempDir(), "missing.gob")))
}

func TestBaseEstimatorStateTransitions(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())

	e.SetFitted()
	assert.True(t, e.IsFitted())

	e.Reset()
	assert.False(t, e.IsFitted())
}
