package window

import (
	"sync"

	"nilm-backend/internal/models"
)

// Buffer keeps the most recent samples per device in a fixed-size sliding
// window. It feeds on-demand prediction when the time-series store is
// unreachable and supplies pre/during/post segments for event features.
type Buffer struct {
	mu      sync.RWMutex
	size    int
	samples map[string][]models.SensorReading
}

// NewBuffer creates a sliding buffer holding up to size samples per device.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 50
	}
	return &Buffer{
		size:    size,
		samples: make(map[string][]models.SensorReading),
	}
}

// Append adds a sample to a device's window, evicting the oldest sample
// when the window is full.
func (b *Buffer) Append(reading *models.SensorReading) {
	if reading == nil || reading.DeviceID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	window := b.samples[reading.DeviceID]
	window = append(window, *reading)
	if len(window) > b.size {
		window = window[len(window)-b.size:]
	}
	b.samples[reading.DeviceID] = window
}

// Snapshot returns a copy of a device's current window, oldest first.
func (b *Buffer) Snapshot(deviceID string) []models.SensorReading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	window := b.samples[deviceID]
	if len(window) == 0 {
		return nil
	}
	out := make([]models.SensorReading, len(window))
	copy(out, window)
	return out
}

// Segments splits a device's window into the samples before and from the
// given index onward, for event feature extraction around a transition.
func (b *Buffer) Segments(deviceID string, splitIndex int) (pre, post []models.SensorReading) {
	snapshot := b.Snapshot(deviceID)
	if snapshot == nil {
		return nil, nil
	}
	if splitIndex < 0 {
		splitIndex = 0
	}
	if splitIndex > len(snapshot) {
		splitIndex = len(snapshot)
	}
	return snapshot[:splitIndex], snapshot[splitIndex:]
}

// Len reports the number of buffered samples for a device.
func (b *Buffer) Len(deviceID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples[deviceID])
}

// DeviceIDs returns all devices with buffered samples.
func (b *Buffer) DeviceIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.samples))
	for id := range b.samples {
		ids = append(ids, id)
	}
	return ids
}
