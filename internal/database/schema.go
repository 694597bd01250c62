package database

// SQL schemas for all ClickHouse tables

const (
	// SensorReadingsTableSQL creates the raw electrical sample table
	SensorReadingsTableSQL = `
		CREATE TABLE IF NOT EXISTS sensor_readings (
			timestamp DateTime64(3),
			device_id String,
			current Float64,
			voltage Float64,
			power Float64
		) ENGINE = MergeTree()
		ORDER BY (device_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// EventsTableSQL creates the ON/OFF transition table
	EventsTableSQL = `
		CREATE TABLE IF NOT EXISTS events (
			timestamp DateTime64(3),
			device_id String,
			event_type String,
			current Float64,
			voltage Float64,
			power Float64
		) ENGINE = MergeTree()
		ORDER BY (device_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// PredictionsTableSQL creates the classifier output table
	PredictionsTableSQL = `
		CREATE TABLE IF NOT EXISTS predictions (
			timestamp DateTime64(3),
			device_id String,
			load_type String,
			confidence Float64,
			load_id Nullable(Int64),
			features String
		) ENGINE = MergeTree()
		ORDER BY (device_id, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// TrainingDataTableSQL creates the labeled training sample table.
	// Windows and features are stored as JSON strings; the corpus is
	// append-only.
	TrainingDataTableSQL = `
		CREATE TABLE IF NOT EXISTS training_data (
			timestamp DateTime64(3),
			device_id String,
			label String,
			load_id Nullable(Int64),
			data_window String,
			features String,
			notes String
		) ENGINE = MergeTree()
		ORDER BY (label, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// LoadRegistryTableSQL creates the declared load specification table
	LoadRegistryTableSQL = `
		CREATE TABLE IF NOT EXISTS load_registry (
			id Int64,
			name String,
			load_type String,
			expected_power_watts Float64,
			expected_current_amps Float64,
			power_tolerance_percent Float64,
			current_tolerance_percent Float64,
			min_power_watts Float64,
			max_power_watts Float64,
			min_current_amps Float64,
			max_current_amps Float64,
			description String,
			manufacturer String,
			model_number String,
			is_active Bool,
			created_at DateTime64(3),
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY id
	`

	// ModelVersionsTableSQL creates the trained model bookkeeping table
	ModelVersionsTableSQL = `
		CREATE TABLE IF NOT EXISTS model_versions (
			version String,
			path String,
			training_samples UInt32,
			accuracy Float64,
			precision Float64,
			recall Float64,
			f1_score Float64,
			is_active Bool,
			created_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(created_at)
		ORDER BY version
	`

	// TrainingSessionsTableSQL creates the training run history table
	TrainingSessionsTableSQL = `
		CREATE TABLE IF NOT EXISTS training_sessions (
			session_id String,
			session_name String,
			status String,
			samples_used UInt32,
			accuracy Float64,
			error_message String,
			model_version String,
			started_at DateTime64(3),
			completed_at Nullable(DateTime64(3))
		) ENGINE = ReplacingMergeTree(started_at)
		ORDER BY session_id
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		SensorReadingsTableSQL,
		EventsTableSQL,
		PredictionsTableSQL,
		TrainingDataTableSQL,
		LoadRegistryTableSQL,
		ModelVersionsTableSQL,
		TrainingSessionsTableSQL,
	}
}
