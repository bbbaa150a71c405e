package kv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instanceSpecDoc struct {
	Manufacturer string `json:"manufacturer"`
}

func TestMemoryStore_PutThenGetRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(BucketInstanceSpec, "inst-1", instanceSpecDoc{Manufacturer: "acme"}))

	var doc instanceSpecDoc
	require.NoError(t, s.Get(BucketInstanceSpec, "inst-1", &doc))
	assert.Equal(t, "acme", doc.Manufacturer)
}

func TestMemoryStore_GetMissingKeyReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	var doc instanceSpecDoc
	err := s.Get(BucketInstanceSpec, "nope", &doc)

	var notFound ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestMemoryStore_PutOverwritesLastWriterWins(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(BucketTaskSpec, "t1", instanceSpecDoc{Manufacturer: "first"}))
	require.NoError(t, s.Put(BucketTaskSpec, "t1", instanceSpecDoc{Manufacturer: "second"}))

	var doc instanceSpecDoc
	require.NoError(t, s.Get(BucketTaskSpec, "t1", &doc))
	assert.Equal(t, "second", doc.Manufacturer)
}

func TestMemoryStore_DeleteRemovesTheKey(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(BucketUserSpec, "u1", instanceSpecDoc{}))
	require.NoError(t, s.Delete(BucketUserSpec, "u1"))

	var doc instanceSpecDoc
	assert.Error(t, s.Get(BucketUserSpec, "u1", &doc))
}

func TestMemoryStore_ListReturnsEveryKeyInABucket(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(BucketMediaSpec, "m1", instanceSpecDoc{}))
	require.NoError(t, s.Put(BucketMediaSpec, "m2", instanceSpecDoc{}))

	keys, err := s.List(BucketMediaSpec)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2"}, keys)
}

func TestMemoryStore_BucketsAreIndependentKeySpaces(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(BucketInstanceSpec, "x1", instanceSpecDoc{Manufacturer: "spec"}))
	require.NoError(t, s.Put(BucketInstanceState, "x1", instanceSpecDoc{Manufacturer: "state"}))

	var spec, state instanceSpecDoc
	require.NoError(t, s.Get(BucketInstanceSpec, "x1", &spec))
	require.NoError(t, s.Get(BucketInstanceState, "x1", &state))
	assert.Equal(t, "spec", spec.Manufacturer)
	assert.Equal(t, "state", state.Manufacturer)
}
