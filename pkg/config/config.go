package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// MQTT Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Topic configuration
	MQTTTopicSensor      string
	MQTTTopicEvents      string
	MQTTTopicPredictions string
	MQTTTopicTraining    string
	MQTTTopicLoads       string

	// ClickHouse Configuration
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// ML Model Configuration
	ModelPath         string
	FeatureWindowSize int

	// Event Detection
	EventThresholdAmps float64

	// Training
	MinSamplesPerClass int

	// Streaming prediction loop
	PredictionIntervalSeconds int
	PredictionWindowSeconds   int

	// Device status
	DeviceOfflineTimeoutSeconds int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		// MQTT Configuration
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "nilm-backend"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		// Topic configuration
		MQTTTopicSensor:      getEnv("MQTT_TOPIC_SENSOR", "nilm/sensor/#"),
		MQTTTopicEvents:      getEnv("MQTT_TOPIC_EVENTS", "nilm/events/{device_id}"),
		MQTTTopicPredictions: getEnv("MQTT_TOPIC_PREDICTIONS", "nilm/predictions/{device_id}"),
		MQTTTopicTraining:    getEnv("MQTT_TOPIC_TRAINING", "nilm/training/#"),
		MQTTTopicLoads:       getEnv("MQTT_TOPIC_LOADS", "nilm/loads/#"),

		// ClickHouse Configuration
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "nilm"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		// ML Model Configuration
		ModelPath:         getEnv("MODEL_PATH", "./model/load_classifier.json"),
		FeatureWindowSize: getEnvInt("FEATURE_WINDOW_SIZE", 50), // 5 seconds at 10Hz

		// Event Detection
		EventThresholdAmps: getEnvFloat("EVENT_DETECTION_THRESHOLD", 0.1),

		// Training
		MinSamplesPerClass: getEnvInt("MIN_SAMPLES_PER_CLASS", 100),

		// Streaming prediction loop
		PredictionIntervalSeconds: getEnvInt("PREDICTION_INTERVAL_SECONDS", 1),
		PredictionWindowSeconds:   getEnvInt("PREDICTION_WINDOW_SECONDS", 5),

		// Device status
		DeviceOfflineTimeoutSeconds: getEnvInt("DEVICE_OFFLINE_TIMEOUT_SECONDS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}
