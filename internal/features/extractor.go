package features

import (
	"math"

	"nilm-backend/internal/models"
)

// MinWindowSize is the minimum number of samples required for extraction.
// Shorter windows yield a nil vector, which callers treat as "insufficient
// data" rather than an error.
const MinWindowSize = 5

// samplePeriodSeconds is the sampling period assumed for time-based
// features (10Hz sensors).
const samplePeriodSeconds = 0.1

// FeatureNames returns the canonical ordered feature schema used for
// model training and serving.
func FeatureNames() []string {
	return []string{
		"current_mean",
		"current_std",
		"current_max",
		"current_min",
		"current_range",
		"current_rms",
		"voltage_mean",
		"voltage_std",
		"power_mean",
		"power_std",
		"power_max",
		"power_integral",
		"current_rise",
		"current_rise_rate",
		"current_peak_index",
		"current_peak_magnitude",
		"current_variance",
		"current_skewness",
		"current_kurtosis",
		"power_current_ratio",
	}
}

// ExtractFeatures computes the statistical feature vector for a window of
// sensor readings. Returns nil when the window holds fewer than
// MinWindowSize samples.
func ExtractFeatures(window []models.SensorReading) models.FeatureVector {
	if len(window) < MinWindowSize {
		return nil
	}

	currents := make([]float64, len(window))
	voltages := make([]float64, len(window))
	powers := make([]float64, len(window))
	for i, r := range window {
		currents[i] = r.Current
		voltages[i] = r.Voltage
		powers[i] = r.Power
	}

	f := make(models.FeatureVector, 20)

	// Current features
	f["current_mean"] = mean(currents)
	f["current_std"] = stdDev(currents)
	f["current_max"] = max(currents)
	f["current_min"] = min(currents)
	f["current_range"] = f["current_max"] - f["current_min"]
	f["current_rms"] = rms(currents)

	// Voltage features
	f["voltage_mean"] = mean(voltages)
	f["voltage_std"] = stdDev(voltages)

	// Power features
	f["power_mean"] = mean(powers)
	f["power_std"] = stdDev(powers)
	f["power_max"] = max(powers)
	f["power_integral"] = trapezoid(powers) // Energy approximation

	// Transient features (first vs second half of window)
	midPoint := len(currents) / 2
	if midPoint > 0 {
		firstHalf := currents[:midPoint]
		secondHalf := currents[midPoint:]

		f["current_rise"] = mean(secondHalf) - mean(firstHalf)
		f["current_rise_rate"] = f["current_rise"] / (float64(len(currents)) * samplePeriodSeconds)

		// Peak detection
		if len(currents) > 10 {
			f["current_peak_index"] = float64(argMax(currents)) / float64(len(currents))
			f["current_peak_magnitude"] = f["current_max"] - f["current_min"]
		}
	}

	// Statistical features
	if len(currents) > 1 {
		f["current_variance"] = variance(currents)
		f["current_skewness"] = skewness(currents)
		f["current_kurtosis"] = kurtosis(currents)
	}

	// Power factor approximation (simplified for DC)
	if f["current_mean"] > 0 {
		f["power_current_ratio"] = f["power_mean"] / f["current_mean"]
	} else {
		f["power_current_ratio"] = 0
	}

	return f
}

// ExtractEventFeatures computes transition features from the samples before,
// during, and after a detected event. Empty segments fall back to the
// neighbouring segment's level, never an error.
func ExtractEventFeatures(preEvent, event, postEvent []models.SensorReading) models.FeatureVector {
	f := make(models.FeatureVector, 6)

	preCurrent := 0.0
	if len(preEvent) > 0 {
		preCurrent = mean(currentsOf(preEvent))
	}

	eventCurrent := preCurrent
	eventMax := preCurrent
	if len(event) > 0 {
		eventCurrents := currentsOf(event)
		eventCurrent = mean(eventCurrents)
		eventMax = max(eventCurrents)
	}

	postCurrent := eventCurrent
	if len(postEvent) > 0 {
		postCurrent = mean(currentsOf(postEvent))
	}

	f["event_magnitude"] = eventMax - preCurrent
	f["event_duration"] = float64(len(event)) * samplePeriodSeconds
	f["event_rise_time"] = riseTime(event, preCurrent)
	f["event_settling_time"] = settlingTime(postEvent, eventCurrent)
	f["pre_event_baseline"] = preCurrent
	f["post_event_steady"] = postCurrent

	return f
}

// riseTime returns the time until the current first reaches 90% of the
// peak above baseline, or 0 when it never does.
func riseTime(event []models.SensorReading, baseline float64) float64 {
	if len(event) == 0 {
		return 0
	}

	currents := currentsOf(event)
	peak := max(currents)
	target := baseline + 0.9*(peak-baseline)

	for i, c := range currents {
		if c >= target {
			return float64(i) * samplePeriodSeconds
		}
	}
	return 0
}

// settlingTime returns the time until the current first settles within 5%
// of the target level. When it never settles, the full post-event duration
// is reported as an explicit fallback.
func settlingTime(postEvent []models.SensorReading, target float64) float64 {
	if len(postEvent) == 0 {
		return 0
	}

	tolerance := 0.05 * target
	for i, r := range postEvent {
		if math.Abs(r.Current-target) <= tolerance {
			return float64(i) * samplePeriodSeconds
		}
	}
	return float64(len(postEvent)) * samplePeriodSeconds
}

func currentsOf(readings []models.SensorReading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Current
	}
	return out
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// variance is the population variance
func variance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := mean(data)
	sum := 0.0
	for _, v := range data {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(data))
}

func stdDev(data []float64) float64 {
	return math.Sqrt(variance(data))
}

func rms(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(data)))
}

func max(data []float64) float64 {
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func min(data []float64) float64 {
	m := data[0]
	for _, v := range data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func argMax(data []float64) int {
	idx := 0
	for i, v := range data {
		if v > data[idx] {
			idx = i
		}
	}
	return idx
}

// trapezoid integrates the series over sample index using the trapezoidal
// rule (unit spacing).
func trapezoid(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(data); i++ {
		sum += (data[i-1] + data[i]) / 2
	}
	return sum
}

// skewness is the population skewness; windows shorter than 3 samples or
// with zero variance report 0.
func skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	m := mean(data)
	s := stdDev(data)
	if s == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		z := (v - m) / s
		sum += z * z * z
	}
	return sum / float64(len(data))
}

// kurtosis is the population excess kurtosis; windows shorter than 4
// samples or with zero variance report 0.
func kurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	m := mean(data)
	s := stdDev(data)
	if s == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		z := (v - m) / s
		sum += z * z * z * z
	}
	return sum/float64(len(data)) - 3.0
}
