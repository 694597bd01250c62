package models

import "time"

// SensorReading represents a single current/voltage/power sample from a
// monitoring device. Timestamp is epoch milliseconds as sent by the sensor.
type SensorReading struct {
	DeviceID  string  `json:"device_id"`
	Timestamp int64   `json:"timestamp"`
	Current   float64 `json:"current"` // Amperes
	Voltage   float64 `json:"voltage"` // Volts
	Power     float64 `json:"power"`   // Watts

	// Optional link diagnostics reported alongside the sample
	WiFiConnected bool   `json:"wifi_connected,omitempty"`
	WiFiSSID      string `json:"wifi_ssid,omitempty"`
	WiFiRSSI      int    `json:"wifi_rssi,omitempty"`
	WiFiIP        string `json:"wifi_ip,omitempty"`
}

// Time converts the epoch-millisecond timestamp to time.Time.
func (r *SensorReading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Event types emitted by the detector
const (
	EventOn  = "ON"
	EventOff = "OFF"
)

// Event represents a detected ON/OFF transition on the monitored circuit
type Event struct {
	Type      string    `json:"type"` // "ON" or "OFF"
	DeviceID  string    `json:"device_id"`
	Current   float64   `json:"current"`
	Voltage   float64   `json:"voltage"`
	Power     float64   `json:"power"`
	Timestamp time.Time `json:"timestamp"`
}

// FeatureVector maps feature names to computed statistics for one window
type FeatureVector map[string]float64

// LoadPrediction is the classifier output after specification matching
type LoadPrediction struct {
	LoadType   string        `json:"load_type"`
	Confidence float64       `json:"confidence"` // 0-1
	Timestamp  time.Time     `json:"timestamp"`
	Features   FeatureVector `json:"features,omitempty"`
	LoadID     *int64        `json:"load_id,omitempty"` // Matched load, if any
}

// PredictionUpdate is the periodic message published by the streaming loop.
// Prediction is nil when there is not enough live data to classify.
type PredictionUpdate struct {
	DeviceID   string          `json:"device_id"`
	Reading    *SensorReading  `json:"reading,omitempty"`
	Prediction *LoadPrediction `json:"prediction,omitempty"`
	Message    string          `json:"message,omitempty"`
	DataPoints int             `json:"data_points"`
	Timestamp  time.Time       `json:"timestamp"`
}
