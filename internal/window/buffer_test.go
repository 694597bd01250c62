package window

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilm-backend/internal/models"
)

func TestAppendAndSnapshot(t *testing.T) {
	b := NewBuffer(3)

	for i := 0; i < 5; i++ {
		b.Append(&models.SensorReading{
			DeviceID:  "dev-1",
			Timestamp: int64(i),
			Current:   float64(i),
		})
	}

	snap := b.Snapshot("dev-1")
	require.Len(t, snap, 3)

	// Oldest samples were evicted; order is time-ascending
	assert.Equal(t, int64(2), snap[0].Timestamp)
	assert.Equal(t, int64(4), snap[2].Timestamp)
}

func TestSnapshotIsACopy(t *testing.T) {
	b := NewBuffer(5)
	b.Append(&models.SensorReading{DeviceID: "dev-1", Current: 1.0})

	snap := b.Snapshot("dev-1")
	snap[0].Current = 99.0

	assert.Equal(t, 1.0, b.Snapshot("dev-1")[0].Current)
}

func TestSegments(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 6; i++ {
		b.Append(&models.SensorReading{DeviceID: "dev-1", Timestamp: int64(i)})
	}

	pre, post := b.Segments("dev-1", 4)
	assert.Len(t, pre, 4)
	assert.Len(t, post, 2)

	pre, post = b.Segments("dev-1", 100)
	assert.Len(t, pre, 6)
	assert.Empty(t, post)

	pre, post = b.Segments("missing", 2)
	assert.Nil(t, pre)
	assert.Nil(t, post)
}

func TestConcurrentAppend(t *testing.T) {
	b := NewBuffer(50)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Append(&models.SensorReading{DeviceID: "dev-1", Current: 0.5})
				b.Snapshot("dev-1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, b.Len("dev-1"))
}
