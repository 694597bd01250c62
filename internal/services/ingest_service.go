package services

import (
	"context"
	"log"
	"time"

	"nilm-backend/internal/detector"
	"nilm-backend/internal/features"
	"nilm-backend/internal/models"
	"nilm-backend/internal/status"
	"nilm-backend/internal/window"
)

// ReadingStore persists raw samples and detected events.
type ReadingStore interface {
	SaveReading(ctx context.Context, reading *models.SensorReading) error
	SaveEvent(ctx context.Context, event *models.Event) error
}

// IngestService consumes the sample stream: each reading is persisted,
// tracked for liveness, buffered for prediction, and run through event
// detection. Detected events are enriched with transition features,
// persisted, and forwarded for publishing.
type IngestService struct {
	store    ReadingStore
	detector *detector.EventDetector
	tracker  *status.Tracker
	buffer   *window.Buffer

	// Input channel from MQTT subscriber
	ReadingChan chan *models.SensorReading

	// Output channel to MQTT publisher
	EventChan chan *models.Event
}

// IngestServiceConfig holds configuration for the ingest service
type IngestServiceConfig struct {
	ReadingChannelSize int
	EventChannelSize   int
}

// DefaultIngestServiceConfig returns default configuration
func DefaultIngestServiceConfig() IngestServiceConfig {
	return IngestServiceConfig{
		ReadingChannelSize: 1000, // 10Hz per device, burst headroom
		EventChannelSize:   100,
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(
	store ReadingStore,
	det *detector.EventDetector,
	tracker *status.Tracker,
	buffer *window.Buffer,
	config IngestServiceConfig,
) *IngestService {
	return &IngestService{
		store:       store,
		detector:    det,
		tracker:     tracker,
		buffer:      buffer,
		ReadingChan: make(chan *models.SensorReading, config.ReadingChannelSize),
		EventChan:   make(chan *models.Event, config.EventChannelSize),
	}
}

// Start begins processing sensor readings from the channel.
// Runs until context is cancelled.
func (s *IngestService) Start(ctx context.Context) {
	log.Println("IngestService: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("IngestService: Shutting down...")
			close(s.EventChan)
			log.Println("IngestService: Shutdown complete")
			return
		case reading, ok := <-s.ReadingChan:
			if !ok {
				log.Println("IngestService: Reading channel closed, shutting down...")
				close(s.EventChan)
				return
			}
			s.processReading(ctx, reading)
		}
	}
}

// processReading handles one sample end to end. Persistence failures are
// logged and absorbed; the live pipeline keeps running on the in-memory
// buffer.
func (s *IngestService) processReading(ctx context.Context, reading *models.SensorReading) {
	if reading == nil || reading.DeviceID == "" {
		log.Println("IngestService: dropping malformed reading")
		return
	}

	if s.store != nil {
		if err := s.store.SaveReading(ctx, reading); err != nil {
			log.Printf("IngestService: failed to save reading from %s: %v", reading.DeviceID, err)
		}
	}

	s.tracker.Touch(reading)
	s.buffer.Append(reading)

	event := s.detector.Process(reading)
	if event == nil {
		return
	}
	s.handleEvent(ctx, event)
}

// handleEvent enriches, persists, and forwards a detected transition.
func (s *IngestService) handleEvent(ctx context.Context, event *models.Event) {
	// The transition sample is the newest in the buffer; everything before
	// it is pre-event context.
	pre, transition := s.buffer.Segments(event.DeviceID, s.buffer.Len(event.DeviceID)-1)
	if eventFeatures := features.ExtractEventFeatures(pre, transition, nil); eventFeatures != nil {
		log.Printf("IngestService: %s event on %s magnitude=%.3fA duration=%.1fs",
			event.Type, event.DeviceID,
			eventFeatures["event_magnitude"], eventFeatures["event_duration"])
	}

	if s.store != nil {
		if err := s.store.SaveEvent(ctx, event); err != nil {
			log.Printf("IngestService: failed to save event for %s: %v", event.DeviceID, err)
		}
	}

	select {
	case s.EventChan <- event:
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Event channel full, dropping %s event for %s", event.Type, event.DeviceID)
	}
}
