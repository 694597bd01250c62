package ml

import (
	"log"
	"sync"
	"time"

	"nilm-backend/internal/features"
	"nilm-backend/internal/models"
)

// SpecMatcher resolves an observed power/current pair to a declared load,
// or nil when no specification contains it.
type SpecMatcher interface {
	MatchBySpecs(power, current float64) *models.Load
}

// confirmation and override constants for spec-match reconciliation
const (
	confirmBoost       = 0.1
	overrideConfidence = 0.85
)

// Classifier serves load predictions from the active model artifact and
// reconciles them against declared load specifications. The active model
// is swapped atomically; an in-flight prediction uses the old or the new
// version, never a half-updated one.
type Classifier struct {
	mu      sync.RWMutex
	model   *ModelArtifact
	matcher SpecMatcher
}

// NewClassifier attempts to load the persisted artifact at modelPath. On
// any load failure a fallback model is synthesized so the service is never
// unavailable. matcher may be nil to disable specification matching.
func NewClassifier(modelPath string, matcher SpecMatcher) *Classifier {
	model, err := LoadArtifact(modelPath)
	if err != nil {
		log.Printf("Classifier: model not usable (%v), synthesizing fallback model", err)
		model = NewFallbackModel()
	}

	return &Classifier{
		model:   model,
		matcher: matcher,
	}
}

// NewClassifierWithModel wraps an already-constructed artifact.
func NewClassifierWithModel(model *ModelArtifact, matcher SpecMatcher) *Classifier {
	return &Classifier{model: model, matcher: matcher}
}

// Activate swaps in a new model version. Readers blocked in Predict see
// either the previous or the new artifact in full.
func (c *Classifier) Activate(model *ModelArtifact) {
	if model == nil {
		return
	}
	c.mu.Lock()
	previous := c.model
	c.model = model
	c.mu.Unlock()

	prevVersion := "none"
	if previous != nil {
		prevVersion = previous.Version
	}
	log.Printf("Classifier: activated model %s (previous %s)", model.Version, prevVersion)
}

// ActiveModel returns the currently serving artifact.
func (c *Classifier) ActiveModel() *ModelArtifact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Predict classifies a window of sensor readings. Windows shorter than
// the feature extractor's minimum yield nil: no prediction available, not
// an error.
func (c *Classifier) Predict(window []models.SensorReading) *models.LoadPrediction {
	if len(window) < features.MinWindowSize {
		return nil
	}

	f := features.ExtractFeatures(window)
	if f == nil {
		return nil
	}

	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()
	if model == nil {
		log.Printf("Classifier: no active model")
		return nil
	}

	vector := model.VectorFromFeatures(f)
	classIndex, probabilities, err := model.Classify(vector)
	if err != nil {
		log.Printf("Classifier: classification failed: %v", err)
		return nil
	}

	confidence := 0.0
	for _, p := range probabilities {
		if p > confidence {
			confidence = p
		}
	}

	prediction := &models.LoadPrediction{
		LoadType:   model.Label(classIndex),
		Confidence: confidence,
		Timestamp:  time.Now(),
		Features:   f,
	}

	c.reconcile(prediction, f)
	return prediction
}

// reconcile applies the specification-matching policy: a matching spec of
// the same load type confirms the prediction (+0.1 confidence, capped at
// 1.0); a matching spec of a different type overrides it at a fixed 0.85
// confidence, trusting the electrical signature over the statistical
// model. No match leaves the prediction untouched.
func (c *Classifier) reconcile(prediction *models.LoadPrediction, f models.FeatureVector) {
	if c.matcher == nil {
		return
	}

	avgPower := f["power_mean"]
	avgCurrent := f["current_mean"]
	if avgPower <= 0 || avgCurrent <= 0 {
		return
	}

	matched := c.matcher.MatchBySpecs(avgPower, avgCurrent)
	if matched == nil {
		return
	}

	if matched.LoadType == prediction.LoadType {
		prediction.Confidence = prediction.Confidence + confirmBoost
		if prediction.Confidence > 1.0 {
			prediction.Confidence = 1.0
		}
	} else {
		log.Printf("Classifier: spec match overrides %q with %q (load %d)",
			prediction.LoadType, matched.LoadType, matched.ID)
		prediction.LoadType = matched.LoadType
		prediction.Confidence = overrideConfidence
	}
	loadID := matched.ID
	prediction.LoadID = &loadID
}

// ModelInfo describes the active model for diagnostics.
type ModelInfo struct {
	ModelType    string            `json:"model_type"`
	Version      string            `json:"version"`
	Loaded       bool              `json:"loaded"`
	Fallback     bool              `json:"fallback"`
	FeatureCount int               `json:"feature_count"`
	Classes      []string          `json:"classes"`
	LabelMapping map[string]string `json:"label_mapping,omitempty"`
	Accuracy     float64           `json:"accuracy,omitempty"`
	CVAccuracy   float64           `json:"cv_accuracy,omitempty"`
}

// Info reports the active model's metadata.
func (c *Classifier) Info() ModelInfo {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	if model == nil {
		return ModelInfo{ModelType: "none"}
	}
	return ModelInfo{
		ModelType:    model.ModelType,
		Version:      model.Version,
		Loaded:       true,
		Fallback:     model.Fallback,
		FeatureCount: len(model.FeatureNames),
		Classes:      append([]string(nil), model.Classes...),
		LabelMapping: model.LabelMapping,
		Accuracy:     model.Accuracy,
		CVAccuracy:   model.CVAccuracy,
	}
}
