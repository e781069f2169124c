package storage

import (
	"encoding/binary"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("key not found")

// SnapshotKey builds the key under which a stream's detector snapshot
// lives. <8 bytes stream ID> <1 tag byte>.
func SnapshotKey(streamID int64) []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint64(buf[:8], uint64(streamID))
	buf[8] = 1
	return buf
}

func StreamIDFromKey(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf[:8]))
}

// Backend is the persistence surface for detector snapshots. Get
// returns ErrNotFound for missing keys.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Close() error
}

// InMemoryBackend is the test double.
type InMemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{data: make(map[string][]byte)}
}

func (backend *InMemoryBackend) Get(key []byte) ([]byte, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	value, ok := backend.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (backend *InMemoryBackend) Put(key, value []byte) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	backend.data[string(key)] = buf
	return nil
}

func (backend *InMemoryBackend) Delete(key []byte) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	delete(backend.data, string(key))
	return nil
}

func (backend *InMemoryBackend) Close() error {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.data = nil
	return nil
}
