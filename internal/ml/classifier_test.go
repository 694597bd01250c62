package ml

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nilm-backend/internal/features"
	"nilm-backend/internal/models"
)

type stubMatcher struct {
	load *models.Load
}

func (m *stubMatcher) MatchBySpecs(power, current float64) *models.Load {
	return m.load
}

func steadyWindow(current float64, size int) []models.SensorReading {
	window := make([]models.SensorReading, size)
	for i := range window {
		window[i] = models.SensorReading{
			DeviceID:  "dev-1",
			Timestamp: int64(i * 100),
			Current:   current,
			Voltage:   12.0,
			Power:     current * 12.0,
		}
	}
	return window
}

func TestPredictInsufficientWindow(t *testing.T) {
	c := NewClassifierWithModel(NewFallbackModel(), nil)

	assert.Nil(t, c.Predict(nil))
	assert.Nil(t, c.Predict(steadyWindow(0.5, 4)))
}

func TestPredictConfidenceBounds(t *testing.T) {
	c := NewClassifierWithModel(NewFallbackModel(), nil)

	for _, current := range []float64{0.05, 0.18, 0.5, 0.68, 2.0} {
		p := c.Predict(steadyWindow(current, 50))
		require.NotNil(t, p)
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
		assert.NotEmpty(t, p.LoadType)
		assert.NotNil(t, p.Features)
	}
}

func TestFallbackModelSeparatesClasses(t *testing.T) {
	c := NewClassifierWithModel(NewFallbackModel(), nil)

	p := c.Predict(steadyWindow(0.18, 50))
	require.NotNil(t, p)
	assert.Equal(t, "bulb", p.LoadType)

	p = c.Predict(steadyWindow(0.5, 50))
	require.NotNil(t, p)
	assert.Equal(t, "fan", p.LoadType)

	p = c.Predict(steadyWindow(0.68, 50))
	require.NotNil(t, p)
	assert.Equal(t, "fan+bulb", p.LoadType)
}

func TestReconcileConfirmingMatch(t *testing.T) {
	model := NewFallbackModel()
	loadID := int64(7)
	matcher := &stubMatcher{load: &models.Load{ID: loadID, LoadType: "fan"}}
	c := NewClassifierWithModel(model, matcher)

	p := c.Predict(steadyWindow(0.5, 50))
	require.NotNil(t, p)
	require.Equal(t, "fan", p.LoadType)

	// Confidence boosted by exactly 0.1, capped at 1.0
	base := NewClassifierWithModel(model, nil).Predict(steadyWindow(0.5, 50))
	require.NotNil(t, base)
	want := base.Confidence + 0.1
	if want > 1.0 {
		want = 1.0
	}
	assert.InDelta(t, want, p.Confidence, 1e-12)
	require.NotNil(t, p.LoadID)
	assert.Equal(t, loadID, *p.LoadID)
}

func TestReconcileOverridingMatch(t *testing.T) {
	matcher := &stubMatcher{load: &models.Load{ID: 3, LoadType: "heater"}}
	c := NewClassifierWithModel(NewFallbackModel(), matcher)

	p := c.Predict(steadyWindow(0.5, 50))
	require.NotNil(t, p)

	// Spec signature trusted over the statistical model
	assert.Equal(t, "heater", p.LoadType)
	assert.Equal(t, 0.85, p.Confidence)
	require.NotNil(t, p.LoadID)
	assert.Equal(t, int64(3), *p.LoadID)
}

func TestReconcileNoMatch(t *testing.T) {
	matcher := &stubMatcher{load: nil}
	model := NewFallbackModel()

	with := NewClassifierWithModel(model, matcher).Predict(steadyWindow(0.5, 50))
	without := NewClassifierWithModel(model, nil).Predict(steadyWindow(0.5, 50))
	require.NotNil(t, with)
	require.NotNil(t, without)

	assert.Equal(t, without.LoadType, with.LoadType)
	assert.Equal(t, without.Confidence, with.Confidence)
	assert.Nil(t, with.LoadID)
}

func TestReconcileSkippedForIdleCircuit(t *testing.T) {
	matcher := &stubMatcher{load: &models.Load{ID: 9, LoadType: "fan"}}
	c := NewClassifierWithModel(NewFallbackModel(), matcher)

	// Zero current means no averages worth matching against
	p := c.Predict(steadyWindow(0, 50))
	require.NotNil(t, p)
	assert.Nil(t, p.LoadID)
}

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "load_classifier.json")

	original := NewFallbackModel()
	original.Accuracy = 0.91
	original.CVAccuracy = 0.93
	require.NoError(t, original.Save(path))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)

	assert.Equal(t, original.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, original.LabelMapping, loaded.LabelMapping)
	assert.Equal(t, original.Classes, loaded.Classes)
	assert.Equal(t, original.Accuracy, loaded.Accuracy)
	assert.Equal(t, original.CVAccuracy, loaded.CVAccuracy)
	assert.Len(t, loaded.Centroids, len(original.Centroids))
}

func TestLoadArtifactMissingFileFallsBack(t *testing.T) {
	c := NewClassifier(filepath.Join(t.TempDir(), "missing.json"), nil)

	info := c.Info()
	assert.True(t, info.Loaded)
	assert.True(t, info.Fallback)
	assert.NotNil(t, c.Predict(steadyWindow(0.5, 50)))
}

func TestLabelMappingAndDefaultTable(t *testing.T) {
	a := &ModelArtifact{
		Classes:      []string{"x", "y"},
		LabelMapping: map[string]string{"0": "fan", "1": "bulb"},
	}
	assert.Equal(t, "fan", a.Label(0))
	assert.Equal(t, "bulb", a.Label(1))

	// Without a mapping, class names apply, then the fixed default table
	b := &ModelArtifact{Classes: []string{"x"}}
	assert.Equal(t, "x", b.Label(0))
	assert.Equal(t, "fan", b.Label(1))
	assert.Equal(t, "unknown", b.Label(5))
	assert.Equal(t, "load_9", b.Label(9))
}

func TestVectorFromFeaturesZeroFillsSchemaDrift(t *testing.T) {
	a := &ModelArtifact{FeatureNames: []string{"current_mean", "brand_new_feature", "power_mean"}}

	vector := a.VectorFromFeatures(models.FeatureVector{
		"current_mean": 0.5,
		"power_mean":   6.0,
	})

	assert.Equal(t, []float64{0.5, 0.0, 6.0}, vector)
}

func TestActivateHotSwapUnderLoad(t *testing.T) {
	c := NewClassifierWithModel(NewFallbackModel(), nil)
	window := steadyWindow(0.5, 50)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := c.Predict(window)
				if !assert.NotNil(t, p) {
					return
				}
				assert.GreaterOrEqual(t, p.Confidence, 0.0)
				assert.LessOrEqual(t, p.Confidence, 1.0)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		next := NewFallbackModel()
		next.Version = "swap-test"
		c.Activate(next)
		time.Sleep(time.Millisecond)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, "swap-test", c.Info().Version)
}

func TestTrainRejectsSingleClass(t *testing.T) {
	var samples []LabeledVector
	for i := 0; i < 10; i++ {
		samples = append(samples, LabeledVector{
			Features: features.ExtractFeatures(steadyWindow(0.5, 50)),
			Label:    "fan",
		})
	}

	_, err := Train(samples, TrainOptions{})
	assert.ErrorIs(t, err, ErrInsufficientTrainingData)
}

func TestTrainProducesUsableModel(t *testing.T) {
	var samples []LabeledVector
	for _, class := range []struct {
		label   string
		current float64
	}{{"bulb", 0.18}, {"fan", 0.5}} {
		for i := 0; i < 25; i++ {
			// Small per-window offset keeps vectors distinct
			current := class.current + float64(i%5)*0.001
			samples = append(samples, LabeledVector{
				Features: features.ExtractFeatures(steadyWindow(current, 50)),
				Label:    class.label,
			})
		}
	}

	artifact, err := Train(samples, TrainOptions{Version: "test"})
	require.NoError(t, err)

	assert.Equal(t, "test", artifact.Version)
	assert.Equal(t, []string{"bulb", "fan"}, artifact.Classes)
	assert.Len(t, artifact.Centroids, 2)
	assert.Equal(t, 1.0, artifact.Accuracy)
	assert.Equal(t, 1.0, artifact.F1Score)

	idx, probs, err := artifact.Classify(artifact.VectorFromFeatures(
		features.ExtractFeatures(steadyWindow(0.18, 50))))
	require.NoError(t, err)
	assert.Equal(t, "bulb", artifact.Label(idx))

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
