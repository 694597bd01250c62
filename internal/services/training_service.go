package services

import (
	"context"
	"errors"
	"log"

	"nilm-backend/internal/models"
	"nilm-backend/internal/training"
	"nilm-backend/internal/window"
)

// TrainingService consumes labeling and retraining commands. A label
// command captures the device's current live window under the given label;
// a train command triggers a retraining run when the corpus is ready.
type TrainingService struct {
	curator *training.Curator
	buffer  *window.Buffer

	// Input channel from MQTT subscriber
	RequestChan chan *models.TrainingRequest
}

// TrainingServiceConfig holds configuration for the training service
type TrainingServiceConfig struct {
	ChannelSize int
}

// DefaultTrainingServiceConfig returns default configuration
func DefaultTrainingServiceConfig() TrainingServiceConfig {
	return TrainingServiceConfig{ChannelSize: 50}
}

// NewTrainingService creates a new training service
func NewTrainingService(curator *training.Curator, buffer *window.Buffer, config TrainingServiceConfig) *TrainingService {
	return &TrainingService{
		curator:     curator,
		buffer:      buffer,
		RequestChan: make(chan *models.TrainingRequest, config.ChannelSize),
	}
}

// Start begins processing training requests from the channel.
// Runs until context is cancelled.
func (s *TrainingService) Start(ctx context.Context) {
	log.Println("TrainingService: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("TrainingService: Shutting down...")
			return
		case request, ok := <-s.RequestChan:
			if !ok {
				log.Println("TrainingService: Request channel closed, shutting down...")
				return
			}
			s.handleRequest(ctx, request)
		}
	}
}

// handleRequest dispatches one command. Failures are logged and absorbed.
func (s *TrainingService) handleRequest(ctx context.Context, request *models.TrainingRequest) {
	switch request.Action {
	case models.TrainingActionLabel:
		s.handleLabel(ctx, request)
	case models.TrainingActionTrain:
		s.handleTrain(ctx)
	default:
		log.Printf("TrainingService: unknown action %q, ignoring", request.Action)
	}
}

// handleLabel captures the device's live window as a labeled sample.
func (s *TrainingService) handleLabel(ctx context.Context, request *models.TrainingRequest) {
	if request.DeviceID == "" || request.Label == "" {
		log.Println("TrainingService: label request needs device_id and label, ignoring")
		return
	}

	snapshot := s.buffer.Snapshot(request.DeviceID)
	sample, err := s.curator.AddSample(ctx, request.DeviceID, snapshot, request.Label, request.LoadID, request.Notes)
	if err != nil {
		log.Printf("TrainingService: failed to capture sample for %s: %v", request.DeviceID, err)
		return
	}

	stats := s.curator.Stats()
	log.Printf("TrainingService: captured %q sample from %s (%d samples, %d labels total)",
		sample.Label, sample.DeviceID, stats.TotalSamples, stats.UniqueLabels)
}

// handleTrain triggers a retraining run.
func (s *TrainingService) handleTrain(ctx context.Context) {
	session, err := s.curator.TriggerTraining(ctx)
	if err != nil {
		if errors.Is(err, training.ErrNotReady) {
			readiness := s.curator.CheckReadiness()
			for _, lc := range readiness.InsufficientLabels {
				log.Printf("TrainingService: label %q has %d samples, needs %d more",
					lc.Label, lc.Samples, lc.Needed)
			}
		}
		log.Printf("TrainingService: training not started: %v", err)
		return
	}

	log.Printf("TrainingService: training session %s started", session.SessionID)
}
