package services

import (
	"context"
	"log"

	"nilm-backend/internal/loads"
	"nilm-backend/internal/models"
)

// LoadStore persists load specifications
type LoadStore interface {
	SaveLoad(ctx context.Context, load *models.Load) error
}

// LoadService consumes load registry management commands. A create command
// declares a new appliance specification in the registry and persists it; a
// deactivate command soft-deletes one and persists the inactive state.
type LoadService struct {
	registry *loads.Registry
	store    LoadStore

	// Input channel from MQTT subscriber
	RequestChan chan *models.LoadRequest
}

// LoadServiceConfig holds configuration for the load service
type LoadServiceConfig struct {
	ChannelSize int
}

// DefaultLoadServiceConfig returns default configuration
func DefaultLoadServiceConfig() LoadServiceConfig {
	return LoadServiceConfig{ChannelSize: 50}
}

// NewLoadService creates a new load service
func NewLoadService(registry *loads.Registry, store LoadStore, config LoadServiceConfig) *LoadService {
	return &LoadService{
		registry:    registry,
		store:       store,
		RequestChan: make(chan *models.LoadRequest, config.ChannelSize),
	}
}

// Start begins processing load requests from the channel.
// Runs until context is cancelled.
func (s *LoadService) Start(ctx context.Context) {
	log.Println("LoadService: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("LoadService: Shutting down...")
			return
		case request, ok := <-s.RequestChan:
			if !ok {
				log.Println("LoadService: Request channel closed, shutting down...")
				return
			}
			s.handleRequest(ctx, request)
		}
	}
}

// handleRequest dispatches one command. Failures are logged and absorbed.
func (s *LoadService) handleRequest(ctx context.Context, request *models.LoadRequest) {
	switch request.Action {
	case models.LoadActionCreate:
		s.handleCreate(ctx, request)
	case models.LoadActionDeactivate:
		s.handleDeactivate(ctx, request)
	default:
		log.Printf("LoadService: unknown action %q, ignoring", request.Action)
	}
}

// handleCreate registers a new load specification and persists it.
func (s *LoadService) handleCreate(ctx context.Context, request *models.LoadRequest) {
	load, err := s.registry.Create(loads.LoadInput{
		Name:                    request.Name,
		LoadType:                request.LoadType,
		ExpectedPowerWatts:      request.ExpectedPowerWatts,
		ExpectedCurrentAmps:     request.ExpectedCurrentAmps,
		PowerTolerancePercent:   request.PowerTolerancePercent,
		CurrentTolerancePercent: request.CurrentTolerancePercent,
		MinPowerWatts:           request.MinPowerWatts,
		MaxPowerWatts:           request.MaxPowerWatts,
		MinCurrentAmps:          request.MinCurrentAmps,
		MaxCurrentAmps:          request.MaxCurrentAmps,
		Description:             request.Description,
		Manufacturer:            request.Manufacturer,
		ModelNumber:             request.ModelNumber,
	})
	if err != nil {
		log.Printf("LoadService: failed to create load %q: %v", request.Name, err)
		return
	}

	if err := s.store.SaveLoad(ctx, load); err != nil {
		log.Printf("LoadService: failed to persist load %q: %v", load.Name, err)
	}

	log.Printf("LoadService: created load %q (id=%d, %.2f-%.2fW, %.3f-%.3fA)",
		load.Name, load.ID, load.MinPowerWatts, load.MaxPowerWatts,
		load.MinCurrentAmps, load.MaxCurrentAmps)
}

// handleDeactivate soft-deletes a load and persists the inactive state.
func (s *LoadService) handleDeactivate(ctx context.Context, request *models.LoadRequest) {
	if err := s.registry.Deactivate(request.ID); err != nil {
		log.Printf("LoadService: failed to deactivate load %d: %v", request.ID, err)
		return
	}

	load, err := s.registry.Get(request.ID)
	if err != nil {
		log.Printf("LoadService: failed to read back load %d: %v", request.ID, err)
		return
	}

	if err := s.store.SaveLoad(ctx, load); err != nil {
		log.Printf("LoadService: failed to persist deactivation of %q: %v", load.Name, err)
	}

	log.Printf("LoadService: deactivated load %q (id=%d)", load.Name, load.ID)
}
