package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nilm-backend/internal/features"
	"nilm-backend/internal/ml"
	"nilm-backend/internal/models"
)

// Readiness thresholds: retraining requires at least MinDistinctLabels
// classes and a per-class sample floor.
const (
	MinDistinctLabels         = 3
	DefaultMinSamplesPerClass = 100
)

var (
	// ErrTrainingInProgress rejects a trigger while a run is active;
	// requests are refused, never queued.
	ErrTrainingInProgress = errors.New("a training run is already in progress")
	// ErrNotReady rejects a trigger before enough labeled data exists.
	ErrNotReady = errors.New("insufficient training data")
	// ErrWindowTooShort rejects labeled windows below the feature minimum.
	ErrWindowTooShort = errors.New("data window too short for feature extraction")
)

// Activator receives newly trained artifacts; satisfied by ml.Classifier.
type Activator interface {
	Activate(model *ml.ModelArtifact)
}

// Recorder persists training samples, sessions, and model version records.
// All recorder failures are absorbed: persistence is best effort and never
// blocks the pipeline.
type Recorder interface {
	SaveTrainingSample(ctx context.Context, sample *models.TrainingSample) error
	SaveTrainingSession(ctx context.Context, session *models.TrainingSession) error
	SaveModelVersion(ctx context.Context, version *models.ModelVersion) error
}

// TrainFunc is the training capability: labeled feature vectors in, fitted
// artifact with evaluation metrics out.
type TrainFunc func(samples []ml.LabeledVector, opts ml.TrainOptions) (*ml.ModelArtifact, error)

// CuratorConfig holds curator settings.
type CuratorConfig struct {
	ModelPath          string
	MinSamplesPerClass int
}

// Curator accumulates labeled data windows, evaluates training readiness,
// and drives retraining with atomic model-version activation.
type Curator struct {
	config    CuratorConfig
	activator Activator
	recorder  Recorder
	train     TrainFunc

	mu         sync.Mutex
	samples    []models.TrainingSample
	countByLbl map[string]int
	versions   []*models.ModelVersion
	inProgress bool
	session    *models.TrainingSession
}

// NewCurator creates a curator. activator and recorder may be nil in
// tests; train defaults to ml.Train.
func NewCurator(config CuratorConfig, activator Activator, recorder Recorder) *Curator {
	if config.MinSamplesPerClass <= 0 {
		config.MinSamplesPerClass = DefaultMinSamplesPerClass
	}
	return &Curator{
		config:     config,
		activator:  activator,
		recorder:   recorder,
		train:      ml.Train,
		countByLbl: make(map[string]int),
	}
}

// AddSample captures a labeled data window. Features are extracted once
// and cached with the sample; samples are never mutated or deleted.
func (c *Curator) AddSample(ctx context.Context, deviceID string, window []models.SensorReading, label string, loadID *int64, notes string) (*models.TrainingSample, error) {
	if label == "" {
		return nil, errors.New("label is required")
	}
	f := features.ExtractFeatures(window)
	if f == nil {
		return nil, fmt.Errorf("%w: have %d samples, need %d", ErrWindowTooShort, len(window), features.MinWindowSize)
	}

	sample := models.TrainingSample{
		DeviceID:   deviceID,
		DataWindow: append([]models.SensorReading(nil), window...),
		Features:   f,
		Label:      label,
		LoadID:     loadID,
		Notes:      notes,
		Timestamp:  time.Now(),
	}

	c.mu.Lock()
	c.samples = append(c.samples, sample)
	c.countByLbl[label]++
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.SaveTrainingSample(ctx, &sample); err != nil {
			log.Printf("Curator: failed to persist training sample: %v", err)
		}
	}

	log.Printf("Curator: captured training sample label=%s window=%d", label, len(window))
	return &sample, nil
}

// Stats summarizes the collected corpus.
func (c *Curator) Stats() models.TrainingStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byLabel := make(map[string]int, len(c.countByLbl))
	for label, count := range c.countByLbl {
		byLabel[label] = count
	}
	return models.TrainingStats{
		TotalSamples:   len(c.samples),
		SamplesByLabel: byLabel,
		UniqueLabels:   len(byLabel),
	}
}

// CheckReadiness reports whether retraining can start: at least
// MinDistinctLabels distinct labels, each with the per-class minimum.
// Deficits are itemized per label.
func (c *Curator) CheckReadiness() models.TrainingReadiness {
	c.mu.Lock()
	defer c.mu.Unlock()

	minPerClass := c.config.MinSamplesPerClass

	labels := make([]string, 0, len(c.countByLbl))
	for label := range c.countByLbl {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	readiness := models.TrainingReadiness{
		ReadyLabels:        []models.LabelCount{},
		InsufficientLabels: []models.LabelCount{},
		MinSamplesPerClass: minPerClass,
	}

	for _, label := range labels {
		count := c.countByLbl[label]
		if count >= minPerClass {
			readiness.ReadyLabels = append(readiness.ReadyLabels, models.LabelCount{
				Label: label, Samples: count,
			})
		} else {
			readiness.InsufficientLabels = append(readiness.InsufficientLabels, models.LabelCount{
				Label: label, Samples: count, Needed: minPerClass - count,
			})
		}
	}

	readiness.IsReady = len(readiness.ReadyLabels) >= MinDistinctLabels &&
		len(readiness.InsufficientLabels) == 0
	return readiness
}

// TriggerTraining starts a retraining run on its own goroutine. A second
// trigger while one is active is rejected outright. Returns the session
// immediately; poll Status for completion.
func (c *Curator) TriggerTraining(ctx context.Context) (*models.TrainingSession, error) {
	readiness := c.CheckReadiness()
	if !readiness.IsReady {
		return nil, fmt.Errorf("%w: %d ready labels, %d deficient",
			ErrNotReady, len(readiness.ReadyLabels), len(readiness.InsufficientLabels))
	}

	c.mu.Lock()
	if c.inProgress {
		c.mu.Unlock()
		return nil, ErrTrainingInProgress
	}
	c.inProgress = true

	session := &models.TrainingSession{
		SessionID:   uuid.NewString(),
		SessionName: "training_" + time.Now().Format("20060102_150405"),
		Status:      models.TrainingRunning,
		StartedAt:   time.Now(),
	}
	c.session = session

	vectors := make([]ml.LabeledVector, 0, len(c.samples))
	for _, s := range c.samples {
		vectors = append(vectors, ml.LabeledVector{Features: s.Features, Label: s.Label})
	}
	train := c.train
	c.mu.Unlock()

	log.Printf("Curator: training session %s started with %d samples", session.SessionID, len(vectors))

	go c.runTraining(ctx, session, train, vectors)

	snapshot := *session
	return &snapshot, nil
}

// Status returns the latest session, or a pending placeholder when no run
// has ever started.
func (c *Curator) Status() models.TrainingSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return models.TrainingSession{Status: models.TrainingPending}
	}
	return *c.session
}

// Versions returns the recorded model versions, newest last.
func (c *Curator) Versions() []*models.ModelVersion {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.ModelVersion, len(c.versions))
	for i, v := range c.versions {
		copied := *v
		out[i] = &copied
	}
	return out
}

func (c *Curator) runTraining(ctx context.Context, session *models.TrainingSession, train TrainFunc, vectors []ml.LabeledVector) {
	artifact, err := train(vectors, ml.TrainOptions{})
	if err != nil {
		c.finishSession(ctx, session, func(s *models.TrainingSession) {
			s.Status = models.TrainingFailed
			s.ErrorMessage = err.Error()
		})
		log.Printf("Curator: training session %s failed: %v", session.SessionID, err)
		return
	}

	if c.config.ModelPath != "" {
		if err := artifact.Save(c.config.ModelPath); err != nil {
			c.finishSession(ctx, session, func(s *models.TrainingSession) {
				s.Status = models.TrainingFailed
				s.ErrorMessage = err.Error()
			})
			log.Printf("Curator: failed to persist model %s: %v", artifact.Version, err)
			return
		}
	}

	version := &models.ModelVersion{
		Version:         artifact.Version,
		Path:            c.config.ModelPath,
		TrainingSamples: artifact.TrainingSamples,
		Accuracy:        artifact.Accuracy,
		Precision:       artifact.Precision,
		Recall:          artifact.Recall,
		F1Score:         artifact.F1Score,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}

	c.mu.Lock()
	for _, v := range c.versions {
		v.IsActive = false
	}
	c.versions = append(c.versions, version)
	c.mu.Unlock()

	// The classifier swaps the artifact reference atomically; in-flight
	// predictions see the old or the new model, never a partial one.
	if c.activator != nil {
		c.activator.Activate(artifact)
	}

	if c.recorder != nil {
		if err := c.recorder.SaveModelVersion(ctx, version); err != nil {
			log.Printf("Curator: failed to persist model version: %v", err)
		}
	}

	c.finishSession(ctx, session, func(s *models.TrainingSession) {
		s.Status = models.TrainingCompleted
		s.Accuracy = artifact.Accuracy
		s.SamplesUsed = artifact.TrainingSamples
		s.ModelVersion = artifact.Version
	})

	log.Printf("Curator: training session %s completed: version=%s accuracy=%.4f",
		session.SessionID, artifact.Version, artifact.Accuracy)
}

func (c *Curator) finishSession(ctx context.Context, session *models.TrainingSession, update func(*models.TrainingSession)) {
	now := time.Now()

	c.mu.Lock()
	update(session)
	session.CompletedAt = &now
	session.ProgressPercent = 100.0
	c.inProgress = false
	snapshot := *session
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.SaveTrainingSession(ctx, &snapshot); err != nil {
			log.Printf("Curator: failed to persist training session: %v", err)
		}
	}
}
