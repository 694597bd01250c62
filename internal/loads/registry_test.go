package loads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilm-backend/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestCreateDerivesRanges(t *testing.T) {
	r := NewRegistry()

	load, err := r.Create(LoadInput{
		Name:                "desk fan",
		LoadType:            "fan",
		ExpectedPowerWatts:  6.0,
		ExpectedCurrentAmps: 0.5,
	})
	require.NoError(t, err)

	// Default 10% tolerance
	assert.InDelta(t, 5.4, load.MinPowerWatts, 1e-9)
	assert.InDelta(t, 6.6, load.MaxPowerWatts, 1e-9)
	assert.InDelta(t, 0.45, load.MinCurrentAmps, 1e-9)
	assert.InDelta(t, 0.55, load.MaxCurrentAmps, 1e-9)
	assert.True(t, load.IsActive)
	assert.Equal(t, int64(1), load.ID)
}

func TestCreateRangeInvariant(t *testing.T) {
	r := NewRegistry()

	for _, tol := range []float64{0, 10, 25, 50} {
		load, err := r.Create(LoadInput{
			Name:                  "load-" + string(rune('a'+int(tol))),
			LoadType:              "heater",
			ExpectedPowerWatts:    100,
			ExpectedCurrentAmps:   8,
			PowerTolerancePercent: floatPtr(tol),
		})
		require.NoError(t, err)

		// min <= expected <= max for every allowed tolerance
		assert.LessOrEqual(t, load.MinPowerWatts, load.ExpectedPowerWatts)
		assert.LessOrEqual(t, load.ExpectedPowerWatts, load.MaxPowerWatts)
	}
}

func TestCreateValidation(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create(LoadInput{LoadType: "fan", ExpectedPowerWatts: 5, ExpectedCurrentAmps: 0.5})
	assert.Error(t, err)

	_, err = r.Create(LoadInput{Name: "x", LoadType: "fan", ExpectedPowerWatts: 0, ExpectedCurrentAmps: 0.5})
	assert.Error(t, err)

	_, err = r.Create(LoadInput{
		Name: "y", LoadType: "fan",
		ExpectedPowerWatts: 5, ExpectedCurrentAmps: 0.5,
		PowerTolerancePercent: floatPtr(51),
	})
	assert.Error(t, err)
}

func TestDuplicateName(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create(LoadInput{Name: "bulb", LoadType: "bulb", ExpectedPowerWatts: 2, ExpectedCurrentAmps: 0.18})
	require.NoError(t, err)

	_, err = r.Create(LoadInput{Name: "bulb", LoadType: "bulb", ExpectedPowerWatts: 2, ExpectedCurrentAmps: 0.18})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestExplicitBoundsOverrideDerived(t *testing.T) {
	r := NewRegistry()

	load, err := r.Create(LoadInput{
		Name: "motor", LoadType: "motor",
		ExpectedPowerWatts:  24,
		ExpectedCurrentAmps: 2,
		MinPowerWatts:       floatPtr(20),
		MaxCurrentAmps:      floatPtr(2.5),
	})
	require.NoError(t, err)

	assert.Equal(t, 20.0, load.MinPowerWatts)
	assert.InDelta(t, 26.4, load.MaxPowerWatts, 1e-9)
	assert.Equal(t, 2.5, load.MaxCurrentAmps)
	assert.InDelta(t, 1.8, load.MinCurrentAmps, 1e-9)
}

func TestMatchBySpecsFirstMatchWins(t *testing.T) {
	r := NewRegistry()

	first, err := r.Create(LoadInput{Name: "fan A", LoadType: "fan", ExpectedPowerWatts: 6, ExpectedCurrentAmps: 0.5})
	require.NoError(t, err)
	_, err = r.Create(LoadInput{Name: "fan B", LoadType: "fan", ExpectedPowerWatts: 6, ExpectedCurrentAmps: 0.5})
	require.NoError(t, err)

	// Both specs contain the observation; the earliest registration wins
	match := r.MatchBySpecs(6.0, 0.5)
	require.NotNil(t, match)
	assert.Equal(t, first.ID, match.ID)
}

func TestMatchBySpecsRequiresBothRanges(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create(LoadInput{Name: "fan", LoadType: "fan", ExpectedPowerWatts: 6, ExpectedCurrentAmps: 0.5})
	require.NoError(t, err)

	// Power inside range, current outside
	assert.Nil(t, r.MatchBySpecs(6.0, 1.2))
	// Current inside range, power outside
	assert.Nil(t, r.MatchBySpecs(30.0, 0.5))
	assert.NotNil(t, r.MatchBySpecs(6.0, 0.5))
}

func TestDeactivateExcludesFromMatching(t *testing.T) {
	r := NewRegistry()

	load, err := r.Create(LoadInput{Name: "fan", LoadType: "fan", ExpectedPowerWatts: 6, ExpectedCurrentAmps: 0.5})
	require.NoError(t, err)

	require.NoError(t, r.Deactivate(load.ID))
	assert.Nil(t, r.MatchBySpecs(6.0, 0.5))
	assert.Empty(t, r.All(true))
	assert.Len(t, r.All(false), 1)
}

func TestGetByNameAndByType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create(LoadInput{Name: "fan A", LoadType: "fan", ExpectedPowerWatts: 6, ExpectedCurrentAmps: 0.5})
	require.NoError(t, err)
	_, err = r.Create(LoadInput{Name: "bulb A", LoadType: "bulb", ExpectedPowerWatts: 2.2, ExpectedCurrentAmps: 0.18})
	require.NoError(t, err)

	load, err := r.GetByName("bulb A")
	require.NoError(t, err)
	assert.Equal(t, "bulb", load.LoadType)

	fans := r.ByType("fan")
	assert.Len(t, fans, 1)

	_, err = r.GetByName("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestorePreservesIDsAndSequencing(t *testing.T) {
	r := NewRegistry()

	r.Restore(&models.Load{ID: 7, Name: "heater A", LoadType: "heater",
		MinPowerWatts: 100, MaxPowerWatts: 120, MinCurrentAmps: 0.9, MaxCurrentAmps: 1.1,
		IsActive: true})

	load, err := r.Get(7)
	require.NoError(t, err)
	assert.Equal(t, "heater A", load.Name)

	// Duplicate names are skipped silently
	r.Restore(&models.Load{ID: 8, Name: "heater A", LoadType: "heater"})
	assert.Len(t, r.All(false), 1)

	// Fresh creations continue after the highest restored ID
	created, err := r.Create(LoadInput{Name: "fan B", LoadType: "fan",
		ExpectedPowerWatts: 6, ExpectedCurrentAmps: 0.5})
	require.NoError(t, err)
	assert.Equal(t, int64(8), created.ID)

	// Restored loads participate in matching
	assert.NotNil(t, r.MatchBySpecs(110, 1.0))
}
