package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilm-backend/internal/loads"
	"nilm-backend/internal/models"
)

type stubLoadStore struct {
	mu        sync.Mutex
	saved     []*models.Load
	failSaves bool
}

func (s *stubLoadStore) SaveLoad(ctx context.Context, load *models.Load) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return errors.New("store down")
	}
	copied := *load
	s.saved = append(s.saved, &copied)
	return nil
}

func (s *stubLoadStore) savedLoads() []*models.Load {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Load(nil), s.saved...)
}

func newLoadServiceFixture() (*LoadService, *loads.Registry, *stubLoadStore) {
	registry := loads.NewRegistry()
	store := &stubLoadStore{}
	return NewLoadService(registry, store, DefaultLoadServiceConfig()), registry, store
}

func TestLoadServiceCreatePersists(t *testing.T) {
	service, registry, store := newLoadServiceFixture()

	service.handleRequest(context.Background(), &models.LoadRequest{
		Action:              models.LoadActionCreate,
		Name:                "LED Bulb",
		LoadType:            "lighting",
		ExpectedPowerWatts:  2.16,
		ExpectedCurrentAmps: 0.18,
	})

	// Registered with derived 10% tolerance ranges
	load, err := registry.GetByName("LED Bulb")
	require.NoError(t, err)
	assert.InDelta(t, 1.944, load.MinPowerWatts, 1e-9)
	assert.InDelta(t, 2.376, load.MaxPowerWatts, 1e-9)
	assert.True(t, load.IsActive)

	// Persisted with the registry-assigned ID
	saved := store.savedLoads()
	require.Len(t, saved, 1)
	assert.Equal(t, load.ID, saved[0].ID)
	assert.Equal(t, "LED Bulb", saved[0].Name)
}

func TestLoadServiceCreateDuplicateAbsorbed(t *testing.T) {
	service, registry, store := newLoadServiceFixture()

	request := &models.LoadRequest{
		Action:              models.LoadActionCreate,
		Name:                "Fan",
		LoadType:            "motor",
		ExpectedPowerWatts:  6.0,
		ExpectedCurrentAmps: 0.5,
	}
	service.handleRequest(context.Background(), request)
	service.handleRequest(context.Background(), request)

	// The duplicate is rejected without disturbing the first registration
	assert.Len(t, registry.All(false), 1)
	assert.Len(t, store.savedLoads(), 1)
}

func TestLoadServiceCreateSurvivesStoreFailure(t *testing.T) {
	service, registry, store := newLoadServiceFixture()
	store.failSaves = true

	service.handleRequest(context.Background(), &models.LoadRequest{
		Action:              models.LoadActionCreate,
		Name:                "Heater",
		LoadType:            "resistive",
		ExpectedPowerWatts:  24.0,
		ExpectedCurrentAmps: 2.0,
	})

	// The load is still registered and usable for matching
	load, err := registry.GetByName("Heater")
	require.NoError(t, err)
	assert.True(t, load.IsActive)
}

func TestLoadServiceDeactivatePersistsInactive(t *testing.T) {
	service, registry, store := newLoadServiceFixture()

	created, err := registry.Create(loads.LoadInput{
		Name:                "Fan",
		LoadType:            "motor",
		ExpectedPowerWatts:  6.0,
		ExpectedCurrentAmps: 0.5,
	})
	require.NoError(t, err)

	service.handleRequest(context.Background(), &models.LoadRequest{
		Action: models.LoadActionDeactivate,
		ID:     created.ID,
	})

	load, err := registry.Get(created.ID)
	require.NoError(t, err)
	assert.False(t, load.IsActive)

	saved := store.savedLoads()
	require.Len(t, saved, 1)
	assert.False(t, saved[0].IsActive)
}

func TestLoadServiceDeactivateUnknownIDAbsorbed(t *testing.T) {
	service, _, store := newLoadServiceFixture()

	service.handleRequest(context.Background(), &models.LoadRequest{
		Action: models.LoadActionDeactivate,
		ID:     42,
	})

	assert.Empty(t, store.savedLoads())
}

func TestLoadServiceUnknownActionIgnored(t *testing.T) {
	service, registry, store := newLoadServiceFixture()

	service.handleRequest(context.Background(), &models.LoadRequest{
		Action: "rename",
		Name:   "Fan",
	})

	assert.Empty(t, registry.All(false))
	assert.Empty(t, store.savedLoads())
}
