package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"nilm-backend/internal/models"
)

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	// Initialize schema
	if err := db.InitSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema() error {
	ctx := context.Background()

	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// SaveReading saves a raw electrical sample to the database
func (db *ClickHouseDB) SaveReading(ctx context.Context, reading *models.SensorReading) error {
	query := `
		INSERT INTO sensor_readings (timestamp, device_id, current, voltage, power)
		VALUES (?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		reading.Time(),
		reading.DeviceID,
		reading.Current,
		reading.Voltage,
		reading.Power,
	)

	if err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}

	return nil
}

// SaveEvent saves a detected ON/OFF transition to the database
func (db *ClickHouseDB) SaveEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (timestamp, device_id, event_type, current, voltage, power)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		event.Timestamp,
		event.DeviceID,
		event.Type,
		event.Current,
		event.Voltage,
		event.Power,
	)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// SavePrediction saves a classifier output to the database
func (db *ClickHouseDB) SavePrediction(ctx context.Context, deviceID string, prediction *models.LoadPrediction) error {
	featuresJSON, err := json.Marshal(prediction.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction features: %w", err)
	}

	query := `
		INSERT INTO predictions (timestamp, device_id, load_type, confidence, load_id, features)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err = db.conn.Exec(ctx, query,
		prediction.Timestamp,
		deviceID,
		prediction.LoadType,
		prediction.Confidence,
		prediction.LoadID,
		string(featuresJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	return nil
}

// SaveTrainingSample saves a labeled data window to the database
func (db *ClickHouseDB) SaveTrainingSample(ctx context.Context, sample *models.TrainingSample) error {
	windowJSON, err := json.Marshal(sample.DataWindow)
	if err != nil {
		return fmt.Errorf("failed to marshal data window: %w", err)
	}
	featuresJSON, err := json.Marshal(sample.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal sample features: %w", err)
	}

	query := `
		INSERT INTO training_data (timestamp, device_id, label, load_id, data_window, features, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err = db.conn.Exec(ctx, query,
		sample.Timestamp,
		sample.DeviceID,
		sample.Label,
		sample.LoadID,
		string(windowJSON),
		string(featuresJSON),
		sample.Notes,
	)

	if err != nil {
		return fmt.Errorf("failed to insert training sample: %w", err)
	}

	return nil
}

// SaveTrainingSession records a training run's outcome
func (db *ClickHouseDB) SaveTrainingSession(ctx context.Context, session *models.TrainingSession) error {
	query := `
		INSERT INTO training_sessions (session_id, session_name, status, samples_used, accuracy, error_message, model_version, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		session.SessionID,
		session.SessionName,
		session.Status,
		uint32(session.SamplesUsed),
		session.Accuracy,
		session.ErrorMessage,
		session.ModelVersion,
		session.StartedAt,
		session.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert training session: %w", err)
	}

	return nil
}

// SaveModelVersion records a trained model artifact
func (db *ClickHouseDB) SaveModelVersion(ctx context.Context, version *models.ModelVersion) error {
	query := `
		INSERT INTO model_versions (version, path, training_samples, accuracy, precision, recall, f1_score, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		version.Version,
		version.Path,
		uint32(version.TrainingSamples),
		version.Accuracy,
		version.Precision,
		version.Recall,
		version.F1Score,
		version.IsActive,
		version.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert model version: %w", err)
	}

	return nil
}

// SaveLoad upserts a declared load specification
func (db *ClickHouseDB) SaveLoad(ctx context.Context, load *models.Load) error {
	query := `
		INSERT INTO load_registry (id, name, load_type, expected_power_watts, expected_current_amps,
			power_tolerance_percent, current_tolerance_percent, min_power_watts, max_power_watts,
			min_current_amps, max_current_amps, description, manufacturer, model_number, is_active,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		load.ID,
		load.Name,
		load.LoadType,
		load.ExpectedPowerWatts,
		load.ExpectedCurrentAmps,
		load.PowerTolerancePercent,
		load.CurrentTolerancePercent,
		load.MinPowerWatts,
		load.MaxPowerWatts,
		load.MinCurrentAmps,
		load.MaxCurrentAmps,
		load.Description,
		load.Manufacturer,
		load.ModelNumber,
		load.IsActive,
		load.CreatedAt,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert load: %w", err)
	}

	return nil
}

// GetLoads returns the latest revision of every declared load
func (db *ClickHouseDB) GetLoads(ctx context.Context) ([]models.Load, error) {
	query := `
		SELECT id, name, load_type, expected_power_watts, expected_current_amps,
			power_tolerance_percent, current_tolerance_percent, min_power_watts, max_power_watts,
			min_current_amps, max_current_amps, description, manufacturer, model_number, is_active,
			created_at
		FROM load_registry FINAL
		ORDER BY id
	`

	rows, err := db.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query load registry: %w", err)
	}
	defer rows.Close()

	var loads []models.Load
	for rows.Next() {
		var l models.Load
		if err := rows.Scan(
			&l.ID, &l.Name, &l.LoadType, &l.ExpectedPowerWatts, &l.ExpectedCurrentAmps,
			&l.PowerTolerancePercent, &l.CurrentTolerancePercent, &l.MinPowerWatts, &l.MaxPowerWatts,
			&l.MinCurrentAmps, &l.MaxCurrentAmps, &l.Description, &l.Manufacturer, &l.ModelNumber,
			&l.IsActive, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan load row: %w", err)
		}
		loads = append(loads, l)
	}
	return loads, nil
}

// GetRecentWindow returns the samples for one device within the trailing
// window, in ascending time order, ready for feature extraction.
func (db *ClickHouseDB) GetRecentWindow(ctx context.Context, deviceID string, windowSeconds int) ([]models.SensorReading, error) {
	windowStart := time.Now().Add(-time.Duration(windowSeconds) * time.Second)

	query := `
		SELECT timestamp, device_id, current, voltage, power
		FROM sensor_readings
		WHERE device_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`

	rows, err := db.conn.Query(ctx, query, deviceID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent window: %w", err)
	}
	defer rows.Close()

	var readings []models.SensorReading
	for rows.Next() {
		var ts time.Time
		var r models.SensorReading
		if err := rows.Scan(&ts, &r.DeviceID, &r.Current, &r.Voltage, &r.Power); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		r.Timestamp = ts.UnixMilli()
		readings = append(readings, r)
	}
	return readings, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		log.Println("ClickHouse connection closed")
	}
	return nil
}
