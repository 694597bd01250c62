package status

import (
	"sync"
	"time"

	"nilm-backend/internal/models"
)

// DefaultOfflineTimeout marks a device offline after this much silence.
const DefaultOfflineTimeout = 30 * time.Second

type deviceState struct {
	lastSeen time.Time
	wifi     models.WiFiInfo
}

// Tracker maintains liveness and link metadata per device. It is written
// by the ingestion path and read by query paths concurrently; the online
// flag is derived at read time, never stored.
type Tracker struct {
	mu             sync.RWMutex
	devices        map[string]deviceState
	offlineTimeout time.Duration

	now func() time.Time
}

// NewTracker creates a tracker with the given offline timeout. A zero
// timeout falls back to DefaultOfflineTimeout.
func NewTracker(offlineTimeout time.Duration) *Tracker {
	if offlineTimeout <= 0 {
		offlineTimeout = DefaultOfflineTimeout
	}
	return &Tracker{
		devices:        make(map[string]deviceState),
		offlineTimeout: offlineTimeout,
		now:            time.Now,
	}
}

// Touch records a sample arrival for a device along with its link snapshot.
func (t *Tracker) Touch(reading *models.SensorReading) {
	if reading == nil || reading.DeviceID == "" {
		return
	}

	t.mu.Lock()
	t.devices[reading.DeviceID] = deviceState{
		lastSeen: t.now(),
		wifi: models.WiFiInfo{
			Connected: reading.WiFiConnected,
			SSID:      reading.WiFiSSID,
			RSSI:      reading.WiFiRSSI,
			IP:        reading.WiFiIP,
		},
	}
	t.mu.Unlock()
}

// Status returns the current status of one device. Unknown devices report
// offline with an empty link snapshot.
func (t *Tracker) Status(deviceID string) models.DeviceStatus {
	t.mu.RLock()
	state, ok := t.devices[deviceID]
	t.mu.RUnlock()

	if !ok {
		return models.DeviceStatus{DeviceID: deviceID}
	}

	lastSeen := state.lastSeen
	return models.DeviceStatus{
		DeviceID: deviceID,
		Online:   t.now().Sub(lastSeen) < t.offlineTimeout,
		LastSeen: &lastSeen,
		WiFi:     state.wifi,
	}
}

// All returns the status of every tracked device.
func (t *Tracker) All() []models.DeviceStatus {
	t.mu.RLock()
	ids := make([]string, 0, len(t.devices))
	for id := range t.devices {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	statuses := make([]models.DeviceStatus, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, t.Status(id))
	}
	return statuses
}

// DeviceIDs returns the IDs of all devices that have ever reported.
func (t *Tracker) DeviceIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.devices))
	for id := range t.devices {
		ids = append(ids, id)
	}
	return ids
}
