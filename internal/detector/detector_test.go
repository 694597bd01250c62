package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilm-backend/internal/models"
)

func reading(device string, ts int64, current float64) *models.SensorReading {
	return &models.SensorReading{
		DeviceID:  device,
		Timestamp: ts,
		Current:   current,
		Voltage:   12.0,
		Power:     current * 12.0,
	}
}

func TestSingleOnEvent(t *testing.T) {
	d := NewEventDetector(0.1)

	// Current sequence [0.10, 0.10, 0.25]: exactly one ON event, fired
	// between the second and third sample.
	assert.Nil(t, d.Process(reading("dev-1", 100, 0.10)))
	assert.Nil(t, d.Process(reading("dev-1", 200, 0.10)))

	e := d.Process(reading("dev-1", 300, 0.25))
	require.NotNil(t, e)
	assert.Equal(t, models.EventOn, e.Type)
	assert.Equal(t, 0.25, e.Current)
}

func TestOffEvent(t *testing.T) {
	d := NewEventDetector(0.1)

	d.Process(reading("dev-1", 100, 0.50))
	e := d.Process(reading("dev-1", 200, 0.20))
	require.NotNil(t, e)
	assert.Equal(t, models.EventOff, e.Type)
}

func TestThresholdIsExclusive(t *testing.T) {
	d := NewEventDetector(0.1)

	d.Process(reading("dev-1", 100, 0.10))
	// A change of exactly the threshold does not fire
	assert.Nil(t, d.Process(reading("dev-1", 200, 0.20)))
}

func TestBaselineUpdatesWithoutEvent(t *testing.T) {
	d := NewEventDetector(0.1)

	d.Process(reading("dev-1", 100, 0.10))
	d.Process(reading("dev-1", 200, 0.15))

	baseline, ok := d.Baseline("dev-1")
	require.True(t, ok)
	assert.Equal(t, 0.15, baseline)
}

func TestPerDeviceBaselines(t *testing.T) {
	d := NewEventDetector(0.1)

	d.Process(reading("dev-1", 100, 0.10))
	d.Process(reading("dev-2", 100, 0.90))

	// dev-2's high current must not disturb dev-1's baseline
	assert.Nil(t, d.Process(reading("dev-1", 200, 0.12)))

	e := d.Process(reading("dev-2", 200, 0.10))
	require.NotNil(t, e)
	assert.Equal(t, models.EventOff, e.Type)
}

func TestMalformedSampleDropped(t *testing.T) {
	d := NewEventDetector(0.1)

	assert.Nil(t, d.Process(nil))
	assert.Nil(t, d.Process(&models.SensorReading{Timestamp: 100, Current: 5.0}))

	// The stream continues afterwards
	assert.Nil(t, d.Process(reading("dev-1", 100, 0.10)))
	assert.NotNil(t, d.Process(reading("dev-1", 200, 0.30)))
}
