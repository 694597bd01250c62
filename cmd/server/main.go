package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nilm-backend/internal/database"
	"nilm-backend/internal/detector"
	"nilm-backend/internal/loads"
	"nilm-backend/internal/ml"
	"nilm-backend/internal/mqtt"
	"nilm-backend/internal/services"
	"nilm-backend/internal/status"
	"nilm-backend/internal/training"
	"nilm-backend/internal/window"
	"nilm-backend/pkg/config"
)

func main() {
	log.Println("Starting NILM Backend Service (Channel-Based Architecture)...")

	// Load configuration
	cfg := config.Load()

	// Initialize ClickHouse database
	db, err := database.NewClickHouseDB(
		cfg.ClickHouseAddr,
		cfg.ClickHouseDB,
		cfg.ClickHouseUser,
		cfg.ClickHousePass,
	)
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse: %v", err)
	}
	defer db.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Initialize Load Registry ===
	registry := loads.NewRegistry()
	if persisted, err := db.GetLoads(ctx); err != nil {
		log.Printf("Failed to hydrate load registry: %v", err)
	} else {
		for i := range persisted {
			registry.Restore(&persisted[i])
		}
		log.Printf("Load registry hydrated with %d loads", len(persisted))
	}

	// === Initialize Pipeline Components ===
	classifier := ml.NewClassifier(cfg.ModelPath, registry)
	eventDetector := detector.NewEventDetector(cfg.EventThresholdAmps)
	tracker := status.NewTracker(time.Duration(cfg.DeviceOfflineTimeoutSeconds) * time.Second)
	buffer := window.NewBuffer(cfg.FeatureWindowSize)

	curator := training.NewCurator(training.CuratorConfig{
		ModelPath:          cfg.ModelPath,
		MinSamplesPerClass: cfg.MinSamplesPerClass,
	}, classifier, db)

	// === Initialize Ingest Service ===
	log.Println("Initializing ingest service...")
	ingestService := services.NewIngestService(
		db, eventDetector, tracker, buffer,
		services.DefaultIngestServiceConfig(),
	)

	// === Initialize Prediction Service ===
	log.Println("Initializing prediction service...")
	predictionService := services.NewPredictionService(
		db, db, classifier, tracker, buffer,
		services.PredictionServiceConfig{
			IntervalSeconds: cfg.PredictionIntervalSeconds,
			WindowSeconds:   cfg.PredictionWindowSeconds,
			ChannelSize:     100,
		},
	)

	// === Initialize Training Service ===
	log.Println("Initializing training service...")
	trainingService := services.NewTrainingService(curator, buffer, services.DefaultTrainingServiceConfig())

	// === Initialize Load Service ===
	log.Println("Initializing load service...")
	loadService := services.NewLoadService(registry, db, services.DefaultLoadServiceConfig())

	// === Initialize MQTT Client ===
	log.Println("Connecting to MQTT broker...")
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Close()

	// === Initialize MQTT Subscriber ===
	log.Println("Setting up MQTT subscriber...")
	subscriber := mqtt.NewSubscriber(
		mqttClient.GetNativeClient(),
		mqtt.SubscriberConfig{
			SensorTopic:   cfg.MQTTTopicSensor,
			TrainingTopic: cfg.MQTTTopicTraining,
			LoadsTopic:    cfg.MQTTTopicLoads,
		},
		ingestService.ReadingChan,
		trainingService.RequestChan,
		loadService.RequestChan,
	)
	if err := subscriber.SubscribeAll(); err != nil {
		log.Fatalf("Failed to subscribe to MQTT topics: %v", err)
	}

	// === Initialize MQTT Publisher ===
	log.Println("Setting up MQTT publisher...")
	publisher := mqtt.NewPublisher(
		mqttClient.GetNativeClient(),
		mqtt.PublisherConfig{
			EventTopic:      cfg.MQTTTopicEvents,
			PredictionTopic: cfg.MQTTTopicPredictions,
		},
		ingestService.EventChan,
		predictionService.PredictionChan,
	)

	// === Start Service Goroutines ===
	go publisher.Start(ctx)
	go ingestService.Start(ctx)
	go predictionService.Start(ctx)
	go trainingService.Start(ctx)
	go loadService.Start(ctx)

	// === Log startup info ===
	log.Println("=== NILM Backend Service is running ===")
	log.Printf("Event detection threshold: %.3fA", cfg.EventThresholdAmps)
	log.Printf("Prediction loop: every %ds over a %ds window",
		cfg.PredictionIntervalSeconds, cfg.PredictionWindowSeconds)
	log.Printf("Active model: %s", classifier.Info().Version)
	log.Printf("MQTT Topics:")
	log.Printf("  - Sensor:      %s", cfg.MQTTTopicSensor)
	log.Printf("  - Events:      %s", cfg.MQTTTopicEvents)
	log.Printf("  - Predictions: %s", cfg.MQTTTopicPredictions)
	log.Printf("  - Training:    %s", cfg.MQTTTopicTraining)
	log.Printf("  - Loads:       %s", cfg.MQTTTopicLoads)
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Println("Shutdown signal received, stopping services...")
	cancel()

	// Give services time to finish processing
	time.Sleep(2 * time.Second)

	log.Println("Shutdown complete. Goodbye!")
}
