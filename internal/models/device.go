package models

import "time"

// WiFiInfo is the last reported link snapshot for a device
type WiFiInfo struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid"`
	RSSI      int    `json:"rssi"`
	IP        string `json:"ip"`
}

// DeviceStatus describes the connection state of one monitoring device.
// Online is derived from LastSeen at query time, never stored.
type DeviceStatus struct {
	DeviceID string     `json:"device_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	WiFi     WiFiInfo   `json:"wifi"`
}

// Load is a declared electrical signature for a known appliance.
// Min/max ranges are derived from the expected values and tolerances
// when not explicitly supplied.
type Load struct {
	ID                      int64     `json:"id"`
	Name                    string    `json:"name"`
	LoadType                string    `json:"load_type"`
	ExpectedPowerWatts      float64   `json:"expected_power_watts"`
	ExpectedCurrentAmps     float64   `json:"expected_current_amps"`
	PowerTolerancePercent   float64   `json:"power_tolerance_percent"`
	CurrentTolerancePercent float64   `json:"current_tolerance_percent"`
	MinPowerWatts           float64   `json:"min_power_watts"`
	MaxPowerWatts           float64   `json:"max_power_watts"`
	MinCurrentAmps          float64   `json:"min_current_amps"`
	MaxCurrentAmps          float64   `json:"max_current_amps"`
	Description             string    `json:"description,omitempty"`
	Manufacturer            string    `json:"manufacturer,omitempty"`
	ModelNumber             string    `json:"model_number,omitempty"`
	IsActive                bool      `json:"is_active"`
	CreatedAt               time.Time `json:"created_at"`
}

// Load management actions received over MQTT
const (
	LoadActionCreate     = "create"
	LoadActionDeactivate = "deactivate"
)

// LoadRequest is a load registry management command. Create declares a new
// appliance specification; deactivate soft-deletes an existing one by ID.
type LoadRequest struct {
	Action                  string   `json:"action"`
	ID                      int64    `json:"id,omitempty"`
	Name                    string   `json:"name,omitempty"`
	LoadType                string   `json:"load_type,omitempty"`
	ExpectedPowerWatts      float64  `json:"expected_power_watts,omitempty"`
	ExpectedCurrentAmps     float64  `json:"expected_current_amps,omitempty"`
	PowerTolerancePercent   *float64 `json:"power_tolerance_percent,omitempty"`
	CurrentTolerancePercent *float64 `json:"current_tolerance_percent,omitempty"`
	MinPowerWatts           *float64 `json:"min_power_watts,omitempty"`
	MaxPowerWatts           *float64 `json:"max_power_watts,omitempty"`
	MinCurrentAmps          *float64 `json:"min_current_amps,omitempty"`
	MaxCurrentAmps          *float64 `json:"max_current_amps,omitempty"`
	Description             string   `json:"description,omitempty"`
	Manufacturer            string   `json:"manufacturer,omitempty"`
	ModelNumber             string   `json:"model_number,omitempty"`
}

// TrainingSample is a labeled data window captured for model training.
// Features are extracted once at capture time and never recomputed.
type TrainingSample struct {
	DeviceID   string          `json:"device_id"`
	DataWindow []SensorReading `json:"data_window"`
	Features   FeatureVector   `json:"features"`
	Label      string          `json:"label"`
	LoadID     *int64          `json:"load_id,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Training request actions received over MQTT
const (
	TrainingActionLabel = "label"
	TrainingActionTrain = "train"
)

// TrainingRequest is a labeling or retraining command
type TrainingRequest struct {
	Action   string `json:"action"`
	DeviceID string `json:"device_id,omitempty"`
	Label    string `json:"label,omitempty"`
	LoadID   *int64 `json:"load_id,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Training session lifecycle states
const (
	TrainingPending   = "pending"
	TrainingRunning   = "running"
	TrainingCompleted = "completed"
	TrainingFailed    = "failed"
)

// TrainingSession records one training run
type TrainingSession struct {
	SessionID       string     `json:"session_id"`
	SessionName     string     `json:"session_name"`
	Status          string     `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	SamplesUsed     int        `json:"samples_used"`
	Accuracy        float64    `json:"accuracy,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ModelVersion    string     `json:"model_version,omitempty"`
}

// ModelVersion records one persisted classifier artifact. Exactly one
// version is active at any time.
type ModelVersion struct {
	Version         string    `json:"version"`
	Path            string    `json:"path"`
	TrainingSamples int       `json:"training_samples"`
	Accuracy        float64   `json:"accuracy"`
	Precision       float64   `json:"precision"`
	Recall          float64   `json:"recall"`
	F1Score         float64   `json:"f1_score"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// LabelCount pairs a label with its collected sample count
type LabelCount struct {
	Label   string `json:"label"`
	Samples int    `json:"samples"`
	Needed  int    `json:"needed,omitempty"`
}

// TrainingReadiness reports whether enough labeled data exists to retrain
type TrainingReadiness struct {
	IsReady            bool         `json:"is_ready"`
	ReadyLabels        []LabelCount `json:"ready_labels"`
	InsufficientLabels []LabelCount `json:"insufficient_labels"`
	MinSamplesPerClass int          `json:"min_samples_per_class"`
}

// TrainingStats summarizes the collected training corpus
type TrainingStats struct {
	TotalSamples   int            `json:"total_samples"`
	SamplesByLabel map[string]int `json:"samples_by_label"`
	UniqueLabels   int            `json:"unique_labels"`
}
