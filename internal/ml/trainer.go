package ml

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"nilm-backend/internal/features"
	"nilm-backend/internal/models"
)

// ModelTypeNearestCentroid identifies the built-in classifier family.
const ModelTypeNearestCentroid = "nearest_centroid"

// LabeledVector pairs an extracted feature vector with its class label.
type LabeledVector struct {
	Features models.FeatureVector
	Label    string
}

// TrainOptions configures a training run.
type TrainOptions struct {
	// Version stamps the resulting artifact; empty derives one from the
	// training time.
	Version string
	// TestFraction of each class held out for evaluation (default 0.2).
	TestFraction float64
	// Seed fixes the shuffle for reproducible splits (default 42).
	Seed int64
	// FeatureNames overrides the canonical feature schema.
	FeatureNames []string
}

// ErrInsufficientTrainingData is returned when fewer than two classes or
// no vectors are supplied.
var ErrInsufficientTrainingData = errors.New("insufficient training data")

// Train fits a nearest-centroid classifier: features are standardized,
// split into stratified train/test partitions, centroids are computed per
// class, and the held-out partition yields accuracy plus weighted
// precision/recall/F1. Returns a complete, unpersisted artifact.
func Train(samples []LabeledVector, opts TrainOptions) (*ModelArtifact, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no labeled vectors", ErrInsufficientTrainingData)
	}

	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	featureNames := opts.FeatureNames
	if len(featureNames) == 0 {
		featureNames = features.FeatureNames()
	}

	// Group vectors per label, preserving a stable class order
	byLabel := make(map[string][][]float64)
	for _, s := range samples {
		if s.Label == "" || len(s.Features) == 0 {
			continue
		}
		byLabel[s.Label] = append(byLabel[s.Label], toVector(s.Features, featureNames))
	}
	if len(byLabel) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 classes, have %d", ErrInsufficientTrainingData, len(byLabel))
	}

	classes := make([]string, 0, len(byLabel))
	for label := range byLabel {
		classes = append(classes, label)
	}
	sort.Strings(classes)

	// Stratified split: each class contributes TestFraction of its
	// vectors to the evaluation set, at least one when it can spare one.
	rng := rand.New(rand.NewSource(opts.Seed))
	var trainX, testX [][]float64
	var trainY, testY []int

	for idx, label := range classes {
		vectors := byLabel[label]
		shuffled := make([][]float64, len(vectors))
		copy(shuffled, vectors)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		testCount := int(float64(len(shuffled)) * opts.TestFraction)
		if testCount == 0 && len(shuffled) > 1 {
			testCount = 1
		}

		for i, v := range shuffled {
			if i < testCount {
				testX = append(testX, v)
				testY = append(testY, idx)
			} else {
				trainX = append(trainX, v)
				trainY = append(trainY, idx)
			}
		}
	}

	scaling := fitScaler(trainX)
	artifact := &ModelArtifact{
		Version:         opts.Version,
		ModelType:       ModelTypeNearestCentroid,
		TrainedAt:       time.Now(),
		FeatureNames:    featureNames,
		Classes:         classes,
		Centroids:       fitCentroids(trainX, trainY, len(classes), scaling),
		LabelMapping:    labelMapping(classes),
		Scaling:         scaling,
		TrainingSamples: len(trainX),
	}
	if artifact.Version == "" {
		artifact.Version = "v" + artifact.TrainedAt.Format("20060102_150405")
	}

	evaluate(artifact, testX, testY)

	log.Printf("ml: trained %s model %s: %d classes, %d train / %d test vectors, accuracy=%.4f",
		artifact.ModelType, artifact.Version, len(classes), len(trainX), len(testX), artifact.Accuracy)
	return artifact, nil
}

func toVector(f models.FeatureVector, names []string) []float64 {
	vector := make([]float64, len(names))
	for i, name := range names {
		vector[i] = f[name]
	}
	return vector
}

func labelMapping(classes []string) map[string]string {
	mapping := make(map[string]string, len(classes))
	for i, label := range classes {
		mapping[fmt.Sprintf("%d", i)] = label
	}
	return mapping
}

func fitScaler(vectors [][]float64) *ScalingState {
	if len(vectors) == 0 {
		return nil
	}
	dims := len(vectors[0])
	mean := make([]float64, dims)
	std := make([]float64, dims)

	for _, v := range vectors {
		for i := 0; i < dims && i < len(v); i++ {
			mean[i] += v[i]
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}

	for _, v := range vectors {
		for i := 0; i < dims && i < len(v); i++ {
			d := v[i] - mean[i]
			std[i] += d * d
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / float64(len(vectors)))
	}
	return &ScalingState{Mean: mean, Std: std}
}

func fitCentroids(vectors [][]float64, labels []int, classCount int, scaling *ScalingState) [][]float64 {
	if len(vectors) == 0 {
		return nil
	}
	dims := len(vectors[0])
	centroids := make([][]float64, classCount)
	counts := make([]int, classCount)
	for i := range centroids {
		centroids[i] = make([]float64, dims)
	}

	tmp := &ModelArtifact{Scaling: scaling}
	for i, v := range vectors {
		scaled := tmp.scale(v)
		cls := labels[i]
		for d := 0; d < dims && d < len(scaled); d++ {
			centroids[cls][d] += scaled[d]
		}
		counts[cls]++
	}
	for cls := range centroids {
		if counts[cls] == 0 {
			continue
		}
		for d := range centroids[cls] {
			centroids[cls][d] /= float64(counts[cls])
		}
	}
	return centroids
}

// evaluate fills the artifact's metrics from the held-out partition using
// weighted averaging across classes, zero when a class has no support.
func evaluate(artifact *ModelArtifact, testX [][]float64, testY []int) {
	if len(testX) == 0 {
		return
	}

	classCount := len(artifact.Classes)
	truePos := make([]int, classCount)
	falsePos := make([]int, classCount)
	falseNeg := make([]int, classCount)
	support := make([]int, classCount)

	correct := 0
	for i, v := range testX {
		predicted, _, err := artifact.Classify(v)
		if err != nil {
			continue
		}
		actual := testY[i]
		support[actual]++
		if predicted == actual {
			correct++
			truePos[actual]++
		} else {
			falsePos[predicted]++
			falseNeg[actual]++
		}
	}

	artifact.Accuracy = float64(correct) / float64(len(testX))

	var precision, recall, f1 float64
	total := 0
	for cls := 0; cls < classCount; cls++ {
		if support[cls] == 0 {
			continue
		}
		p := 0.0
		if truePos[cls]+falsePos[cls] > 0 {
			p = float64(truePos[cls]) / float64(truePos[cls]+falsePos[cls])
		}
		r := 0.0
		if truePos[cls]+falseNeg[cls] > 0 {
			r = float64(truePos[cls]) / float64(truePos[cls]+falseNeg[cls])
		}
		f := 0.0
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		precision += p * float64(support[cls])
		recall += r * float64(support[cls])
		f1 += f * float64(support[cls])
		total += support[cls]
	}
	if total > 0 {
		artifact.Precision = precision / float64(total)
		artifact.Recall = recall / float64(total)
		artifact.F1Score = f1 / float64(total)
	}
}
