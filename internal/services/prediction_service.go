package services

import (
	"context"
	"log"
	"time"

	"nilm-backend/internal/features"
	"nilm-backend/internal/ml"
	"nilm-backend/internal/models"
	"nilm-backend/internal/status"
	"nilm-backend/internal/window"
)

// WindowSource serves the trailing sample window per device from the
// time-series store.
type WindowSource interface {
	GetRecentWindow(ctx context.Context, deviceID string, windowSeconds int) ([]models.SensorReading, error)
}

// PredictionStore persists classifier output.
type PredictionStore interface {
	SavePrediction(ctx context.Context, deviceID string, prediction *models.LoadPrediction) error
}

// PredictionService runs the periodic classification loop: every tick it
// pulls the trailing window for each known device, classifies it, and
// publishes a prediction update. Devices without enough live data get an
// update carrying a message instead of a prediction.
type PredictionService struct {
	source     WindowSource
	store      PredictionStore
	classifier *ml.Classifier
	tracker    *status.Tracker
	buffer     *window.Buffer

	interval      time.Duration
	windowSeconds int

	// Output channel to MQTT publisher
	PredictionChan chan *models.PredictionUpdate
}

// PredictionServiceConfig holds configuration for the prediction service
type PredictionServiceConfig struct {
	IntervalSeconds int
	WindowSeconds   int
	ChannelSize     int
}

// DefaultPredictionServiceConfig returns default configuration
func DefaultPredictionServiceConfig() PredictionServiceConfig {
	return PredictionServiceConfig{
		IntervalSeconds: 1,
		WindowSeconds:   5,
		ChannelSize:     100,
	}
}

// NewPredictionService creates a new prediction service
func NewPredictionService(
	source WindowSource,
	store PredictionStore,
	classifier *ml.Classifier,
	tracker *status.Tracker,
	buffer *window.Buffer,
	config PredictionServiceConfig,
) *PredictionService {
	if config.IntervalSeconds <= 0 {
		config.IntervalSeconds = 1
	}
	if config.WindowSeconds <= 0 {
		config.WindowSeconds = 5
	}
	return &PredictionService{
		source:         source,
		store:          store,
		classifier:     classifier,
		tracker:        tracker,
		buffer:         buffer,
		interval:       time.Duration(config.IntervalSeconds) * time.Second,
		windowSeconds:  config.WindowSeconds,
		PredictionChan: make(chan *models.PredictionUpdate, config.ChannelSize),
	}
}

// Start begins the classification loop. A failed tick never terminates the
// loop. Runs until context is cancelled.
func (s *PredictionService) Start(ctx context.Context) {
	log.Printf("PredictionService: Starting, interval=%v window=%ds", s.interval, s.windowSeconds)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("PredictionService: Shutting down...")
			close(s.PredictionChan)
			log.Println("PredictionService: Shutdown complete")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick classifies every known device once.
func (s *PredictionService) tick(ctx context.Context) {
	for _, deviceID := range s.tracker.DeviceIDs() {
		if ctx.Err() != nil {
			return
		}
		update := s.predictDevice(ctx, deviceID)
		if update == nil {
			continue
		}

		select {
		case s.PredictionChan <- update:
		default:
			log.Printf("Warning: Prediction channel full, dropping update for %s", deviceID)
		}
	}
}

// predictDevice builds one prediction update. The store is the primary
// window source; on failure the in-memory buffer serves as fallback so a
// store outage degrades rather than silences the stream.
func (s *PredictionService) predictDevice(ctx context.Context, deviceID string) *models.PredictionUpdate {
	samples := s.windowFor(ctx, deviceID)

	update := &models.PredictionUpdate{
		DeviceID:   deviceID,
		DataPoints: len(samples),
		Timestamp:  time.Now(),
	}
	if len(samples) > 0 {
		latest := samples[len(samples)-1]
		update.Reading = &latest
	}

	if len(samples) < features.MinWindowSize {
		update.Message = "insufficient data"
		return update
	}

	prediction := s.classifier.Predict(samples)
	if prediction == nil {
		update.Message = "insufficient data"
		return update
	}
	update.Prediction = prediction

	if s.store != nil {
		if err := s.store.SavePrediction(ctx, deviceID, prediction); err != nil {
			log.Printf("PredictionService: failed to save prediction for %s: %v", deviceID, err)
		}
	}
	return update
}

func (s *PredictionService) windowFor(ctx context.Context, deviceID string) []models.SensorReading {
	if s.source != nil {
		samples, err := s.source.GetRecentWindow(ctx, deviceID, s.windowSeconds)
		if err == nil {
			return samples
		}
		log.Printf("PredictionService: store window for %s unavailable (%v), using live buffer", deviceID, err)
	}
	if s.buffer == nil {
		return nil
	}
	return s.buffer.Snapshot(deviceID)
}
