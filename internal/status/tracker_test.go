package status

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilm-backend/internal/models"
)

func TestUnknownDeviceIsOffline(t *testing.T) {
	tr := NewTracker(0)

	st := tr.Status("ghost")
	assert.False(t, st.Online)
	assert.Nil(t, st.LastSeen)
	assert.False(t, st.WiFi.Connected)
}

func TestOnlineDerivedFromLastSeen(t *testing.T) {
	tr := NewTracker(30 * time.Second)

	base := time.Now()
	tr.now = func() time.Time { return base }

	tr.Touch(&models.SensorReading{
		DeviceID:      "dev-1",
		Timestamp:     base.UnixMilli(),
		WiFiConnected: true,
		WiFiSSID:      "lab",
		WiFiRSSI:      -52,
		WiFiIP:        "10.0.0.7",
	})

	st := tr.Status("dev-1")
	require.NotNil(t, st.LastSeen)
	assert.True(t, st.Online)
	assert.Equal(t, "lab", st.WiFi.SSID)

	// 29s of silence: still online
	tr.now = func() time.Time { return base.Add(29 * time.Second) }
	assert.True(t, tr.Status("dev-1").Online)

	// 30s of silence: offline, but last_seen is retained
	tr.now = func() time.Time { return base.Add(30 * time.Second) }
	st = tr.Status("dev-1")
	assert.False(t, st.Online)
	require.NotNil(t, st.LastSeen)
	assert.Equal(t, base, *st.LastSeen)
}

func TestAllReturnsEveryDevice(t *testing.T) {
	tr := NewTracker(0)
	tr.Touch(&models.SensorReading{DeviceID: "dev-1"})
	tr.Touch(&models.SensorReading{DeviceID: "dev-2"})

	assert.Len(t, tr.All(), 2)
	assert.ElementsMatch(t, []string{"dev-1", "dev-2"}, tr.DeviceIDs())
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	tr := NewTracker(0)

	const writers = 8
	const readers = 4
	const iterations = 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			deviceID := fmt.Sprintf("dev-%d", w)
			for i := 0; i < iterations; i++ {
				tr.Touch(&models.SensorReading{
					DeviceID:      deviceID,
					WiFiConnected: true,
					WiFiRSSI:      -40 - i,
					WiFiSSID:      "lab",
					WiFiIP:        "10.0.0.1",
				})
			}
		}(w)
	}

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				for _, st := range tr.All() {
					// Every observed write is complete: a touched device
					// always carries the full link snapshot.
					assert.NotNil(t, st.LastSeen)
					assert.True(t, st.WiFi.Connected)
					assert.Equal(t, "lab", st.WiFi.SSID)
				}
			}
		}()
	}

	wg.Wait()
	assert.Len(t, tr.DeviceIDs(), writers)
}
