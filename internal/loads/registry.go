package loads

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"nilm-backend/internal/models"
)

// Tolerance defaults and bounds for load specifications (percent)
const (
	DefaultTolerancePercent = 10.0
	MaxTolerancePercent     = 50.0
)

var (
	// ErrDuplicateName is returned when a load with the same name exists
	ErrDuplicateName = errors.New("load name already exists")
	// ErrNotFound is returned for unknown load IDs
	ErrNotFound = errors.New("load not found")
)

// LoadInput is the declaration of a known appliance. Zero tolerances are
// replaced with the 10% default; explicit min/max override the derived
// ranges.
type LoadInput struct {
	Name                    string
	LoadType                string
	ExpectedPowerWatts      float64
	ExpectedCurrentAmps     float64
	PowerTolerancePercent   *float64
	CurrentTolerancePercent *float64
	MinPowerWatts           *float64
	MaxPowerWatts           *float64
	MinCurrentAmps          *float64
	MaxCurrentAmps          *float64
	Description             string
	Manufacturer            string
	ModelNumber             string
}

// Registry holds the declared load specifications. Matching scans loads in
// insertion order and returns the first range hit; overlapping
// specifications are a documented ambiguity, not an error.
type Registry struct {
	mu     sync.RWMutex
	loads  []*models.Load
	byName map[string]*models.Load
	nextID int64
}

// NewRegistry creates an empty load registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*models.Load),
		nextID: 1,
	}
}

// Create validates and registers a new load, deriving min/max power and
// current ranges from the expected values and tolerances when not supplied.
func (r *Registry) Create(input LoadInput) (*models.Load, error) {
	if input.Name == "" {
		return nil, errors.New("load name is required")
	}
	if input.LoadType == "" {
		return nil, errors.New("load type is required")
	}
	if input.ExpectedPowerWatts <= 0 {
		return nil, fmt.Errorf("expected power must be positive, got %.3f", input.ExpectedPowerWatts)
	}
	if input.ExpectedCurrentAmps <= 0 {
		return nil, fmt.Errorf("expected current must be positive, got %.3f", input.ExpectedCurrentAmps)
	}

	powerTol, err := resolveTolerance(input.PowerTolerancePercent)
	if err != nil {
		return nil, fmt.Errorf("power tolerance: %w", err)
	}
	currentTol, err := resolveTolerance(input.CurrentTolerancePercent)
	if err != nil {
		return nil, fmt.Errorf("current tolerance: %w", err)
	}

	load := &models.Load{
		Name:                    input.Name,
		LoadType:                input.LoadType,
		ExpectedPowerWatts:      input.ExpectedPowerWatts,
		ExpectedCurrentAmps:     input.ExpectedCurrentAmps,
		PowerTolerancePercent:   powerTol,
		CurrentTolerancePercent: currentTol,
		MinPowerWatts:           derive(input.MinPowerWatts, input.ExpectedPowerWatts, -powerTol),
		MaxPowerWatts:           derive(input.MaxPowerWatts, input.ExpectedPowerWatts, powerTol),
		MinCurrentAmps:          derive(input.MinCurrentAmps, input.ExpectedCurrentAmps, -currentTol),
		MaxCurrentAmps:          derive(input.MaxCurrentAmps, input.ExpectedCurrentAmps, currentTol),
		Description:             input.Description,
		Manufacturer:            input.Manufacturer,
		ModelNumber:             input.ModelNumber,
		IsActive:                true,
		CreatedAt:               time.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[load.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, load.Name)
	}

	load.ID = r.nextID
	r.nextID++
	r.loads = append(r.loads, load)
	r.byName[load.Name] = load

	copied := *load
	return &copied, nil
}

// Restore inserts a previously persisted load as-is, preserving its ID.
// Used to hydrate the registry from the store at startup; duplicate names
// are skipped.
func (r *Registry) Restore(load *models.Load) {
	if load == nil || load.Name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[load.Name]; exists {
		return
	}

	copied := *load
	r.loads = append(r.loads, &copied)
	r.byName[copied.Name] = &copied
	if copied.ID >= r.nextID {
		r.nextID = copied.ID + 1
	}
}

// Get returns a load by ID.
func (r *Registry) Get(id int64) (*models.Load, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, load := range r.loads {
		if load.ID == id {
			copied := *load
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// GetByName returns a load by its unique name.
func (r *Registry) GetByName(name string) (*models.Load, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	load, ok := r.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *load
	return &copied, nil
}

// All returns loads in insertion order. With activeOnly set, deactivated
// loads are skipped.
func (r *Registry) All(activeOnly bool) []*models.Load {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Load, 0, len(r.loads))
	for _, load := range r.loads {
		if activeOnly && !load.IsActive {
			continue
		}
		copied := *load
		out = append(out, &copied)
	}
	return out
}

// ByType returns all active loads of the given type.
func (r *Registry) ByType(loadType string) []*models.Load {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Load
	for _, load := range r.loads {
		if load.IsActive && load.LoadType == loadType {
			copied := *load
			out = append(out, &copied)
		}
	}
	return out
}

// Deactivate soft-deletes a load; it no longer participates in matching.
func (r *Registry) Deactivate(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, load := range r.loads {
		if load.ID == id {
			load.IsActive = false
			return nil
		}
	}
	return ErrNotFound
}

// MatchBySpecs returns the first active load whose power and current ranges
// both contain the observed averages. When multiple specifications overlap,
// the earliest-registered load wins; no tie-break beyond scan order is
// defined.
func (r *Registry) MatchBySpecs(power, current float64) *models.Load {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, load := range r.loads {
		if !load.IsActive {
			continue
		}
		powerMatch := load.MinPowerWatts <= power && power <= load.MaxPowerWatts
		currentMatch := load.MinCurrentAmps <= current && current <= load.MaxCurrentAmps
		if powerMatch && currentMatch {
			copied := *load
			return &copied
		}
	}
	return nil
}

func resolveTolerance(tol *float64) (float64, error) {
	if tol == nil {
		return DefaultTolerancePercent, nil
	}
	if *tol < 0 || *tol > MaxTolerancePercent {
		return 0, fmt.Errorf("must be between 0 and %.0f percent, got %.2f", MaxTolerancePercent, *tol)
	}
	return *tol, nil
}

// derive computes expected*(1+signedTolerance/100) unless an explicit
// bound was provided.
func derive(explicit *float64, expected, signedTolerancePercent float64) float64 {
	if explicit != nil {
		return *explicit
	}
	return expected * (1 + signedTolerancePercent/100)
}
