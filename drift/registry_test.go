package drift

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendengine/storage"
)

func TestRegistryMonitorAndStop(t *testing.T) {
	r := NewRegistry()

	d, err := r.Monitor(1, DefaultConfig(CUSUM))
	require.NoError(t, err)
	require.NotNil(t, d)

	_, err = r.Monitor(1, DefaultConfig(EWMA))
	assert.ErrorIs(t, err, ErrAlreadyMonitored)

	got, ok := r.Detector(1)
	assert.True(t, ok)
	assert.Same(t, d, got)

	assert.NoError(t, r.Stop(1))
	assert.ErrorIs(t, r.Stop(1), ErrNotMonitored)

	_, err = r.Monitor(2, Config{Method: "bogus", Sensitivity: 0.5, WindowSize: 30})
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestRegistryProcessUnmonitored(t *testing.T) {
	r := NewRegistry()
	_, err := r.Process(42, 1.0, 1000)
	assert.ErrorIs(t, err, ErrNotMonitored)
}

func TestRegistryPublishesDriftEvent(t *testing.T) {
	r := NewRegistry(WithEventBuffer(128))
	_, err := r.Monitor(7, DefaultConfig(CUSUM))
	require.NoError(t, err)

	for i, v := range shiftSeries(700, 400, 5, 17) {
		_, err := r.Process(7, v, int64(i)*1000)
		require.NoError(t, err)
	}

	sawDrift := false
drain:
	for {
		select {
		case event := <-r.Events():
			assert.Equal(t, int64(7), event.StreamID)
			if event.Transition == TransitionDrift {
				sawDrift = true
				assert.True(t, event.Result.Detected)
			}
		default:
			break drain
		}
	}
	assert.True(t, sawDrift, "no drift event published after a 5-sigma shift")
}

func TestRegistryCloseDuringProcess(t *testing.T) {
	r := NewRegistry(WithEventBuffer(1))
	_, err := r.Monitor(1, DefaultConfig(CUSUM))
	require.NoError(t, err)

	// A shift right after priming keeps the feeder publishing transition
	// events while Close races it. The tiny buffer forces publish onto
	// both send paths.
	values := shiftSeries(2000, 100, 6, 31)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, v := range values {
			if _, err := r.Process(1, v, int64(i)*1000); err != nil {
				return
			}
		}
	}()

	r.Close()
	wg.Wait()

	// Closing twice is a no-op.
	r.Close()
}

func TestRegistryCheckpointResume(t *testing.T) {
	store := storage.NewInMemoryBackend()
	r := NewRegistry(WithStore(store))

	_, err := r.Monitor(3, DefaultConfig(PageHinkley))
	require.NoError(t, err)

	values := shiftSeries(300, 999, 0, 5)
	for i, v := range values {
		_, err := r.Process(3, v, int64(i)*1000)
		require.NoError(t, err)
	}

	require.NoError(t, r.Checkpoint(3))
	require.NoError(t, r.Stop(3))

	resumed, err := r.Resume(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), resumed.Stats().SamplesProcessed)

	_, err = r.Resume(3)
	assert.ErrorIs(t, err, ErrAlreadyMonitored)
}

func TestRegistryResumeWithoutSnapshot(t *testing.T) {
	r := NewRegistry(WithStore(storage.NewInMemoryBackend()))
	_, err := r.Resume(9)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegistryRequiresStore(t *testing.T) {
	r := NewRegistry()
	_, err := r.Monitor(1, DefaultConfig(CUSUM))
	require.NoError(t, err)

	assert.ErrorIs(t, r.Checkpoint(1), ErrNoStore)
	_, err = r.Resume(1)
	assert.ErrorIs(t, err, ErrNoStore)
}
