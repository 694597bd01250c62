package detector

import (
	"log"
	"sync"

	"nilm-backend/internal/models"
)

// EventDetector watches the sample stream for current-magnitude jumps and
// emits ON/OFF events. The baseline "last current" is tracked per device so
// multiple circuits never share state.
type EventDetector struct {
	thresholdAmps float64

	mu          sync.Mutex
	lastCurrent map[string]float64
}

// NewEventDetector creates a detector with the given current-change
// threshold in Amperes.
func NewEventDetector(thresholdAmps float64) *EventDetector {
	return &EventDetector{
		thresholdAmps: thresholdAmps,
		lastCurrent:   make(map[string]float64),
	}
}

// Process consumes one sample and returns the detected event, if any; a
// nil result means the sample moved the baseline without a transition.
// Malformed samples (missing device ID) are dropped with a diagnostic; the
// stream is never interrupted. The baseline is updated after every valid
// sample, event or not.
func (d *EventDetector) Process(reading *models.SensorReading) *models.Event {
	if reading == nil || reading.DeviceID == "" {
		log.Printf("EventDetector: dropping malformed sample (missing device ID)")
		return nil
	}

	d.mu.Lock()
	last, known := d.lastCurrent[reading.DeviceID]
	d.lastCurrent[reading.DeviceID] = reading.Current
	d.mu.Unlock()

	if !known {
		// First sample establishes the baseline; nothing to compare against.
		return nil
	}

	delta := reading.Current - last
	if delta <= d.thresholdAmps && delta >= -d.thresholdAmps {
		return nil
	}

	eventType := models.EventOff
	if delta > 0 {
		eventType = models.EventOn
	}

	event := &models.Event{
		Type:      eventType,
		DeviceID:  reading.DeviceID,
		Current:   reading.Current,
		Voltage:   reading.Voltage,
		Power:     reading.Power,
		Timestamp: reading.Time(),
	}

	log.Printf("EventDetector: %s event on %s - current %.3fA (delta %.3fA)",
		eventType, reading.DeviceID, reading.Current, delta)

	return event
}

// Baseline returns the current baseline for a device and whether one has
// been established.
func (d *EventDetector) Baseline(deviceID string) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.lastCurrent[deviceID]
	return v, ok
}
