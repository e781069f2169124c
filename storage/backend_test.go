package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotKeyRoundTrip(t *testing.T) {
	key := SnapshotKey(421)
	assert.Equal(t, int64(421), StreamIDFromKey(key))
}

func TestInMemoryBackend(t *testing.T) {
	backend := NewInMemoryBackend()

	_, err := backend.Get(SnapshotKey(1))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, backend.Put(SnapshotKey(1), []byte("abc")))
	value, err := backend.Get(SnapshotKey(1))
	assert.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	assert.NoError(t, backend.Delete(SnapshotKey(1)))
	_, err = backend.Get(SnapshotKey(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerBackend(t *testing.T) {
	backend := NewBadgerBacked(TestBadgerDB())
	defer backend.Close()

	key := SnapshotKey(7)
	value := []byte{0, 1, 2, 3, 4, 5}
	assert.NoError(t, backend.Put(key, value))

	got, err := backend.Get(key)
	assert.NoError(t, err)
	assert.Equal(t, value, got)

	assert.NoError(t, backend.Delete(key))
	_, err = backend.Get(key)
	assert.ErrorIs(t, err, ErrNotFound)
}
