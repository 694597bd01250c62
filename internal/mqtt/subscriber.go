package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nilm-backend/internal/models"
)

// Subscriber handles MQTT subscriptions and writes messages to channels
type Subscriber struct {
	client mqtt.Client

	// Output channels (written by subscriber, read by services)
	ReadingChan  chan *models.SensorReading
	TrainingChan chan *models.TrainingRequest
	LoadChan     chan *models.LoadRequest

	// Topic patterns
	sensorTopic   string // e.g., "nilm/sensor/#"
	trainingTopic string // e.g., "nilm/training/#"
	loadsTopic    string // e.g., "nilm/loads/#"
}

// SubscriberConfig holds configuration for MQTT subscriber
type SubscriberConfig struct {
	SensorTopic   string // e.g., "nilm/sensor/#"
	TrainingTopic string // e.g., "nilm/training/#"
	LoadsTopic    string // e.g., "nilm/loads/#"
}

// NewSubscriber creates a new MQTT subscriber with channels
func NewSubscriber(
	client mqtt.Client,
	config SubscriberConfig,
	readingChan chan *models.SensorReading,
	trainingChan chan *models.TrainingRequest,
	loadChan chan *models.LoadRequest,
) *Subscriber {
	return &Subscriber{
		client:        client,
		ReadingChan:   readingChan,
		TrainingChan:  trainingChan,
		LoadChan:      loadChan,
		sensorTopic:   config.SensorTopic,
		trainingTopic: config.TrainingTopic,
		loadsTopic:    config.LoadsTopic,
	}
}

// SubscribeAll subscribes to all configured topics
func (s *Subscriber) SubscribeAll() error {
	if s.sensorTopic != "" {
		if err := s.subscribeToTopic(s.sensorTopic, s.handleReading); err != nil {
			return fmt.Errorf("failed to subscribe to sensor topic: %w", err)
		}
		log.Printf("Subscribed to sensor topic: %s", s.sensorTopic)
	}

	if s.trainingTopic != "" {
		if err := s.subscribeToTopic(s.trainingTopic, s.handleTraining); err != nil {
			return fmt.Errorf("failed to subscribe to training topic: %w", err)
		}
		log.Printf("Subscribed to training topic: %s", s.trainingTopic)
	}

	if s.loadsTopic != "" {
		if err := s.subscribeToTopic(s.loadsTopic, s.handleLoad); err != nil {
			return fmt.Errorf("failed to subscribe to loads topic: %w", err)
		}
		log.Printf("Subscribed to loads topic: %s", s.loadsTopic)
	}
	return nil
}

// subscribeToTopic is a helper function to subscribe to a topic with a handler
func (s *Subscriber) subscribeToTopic(topic string, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, 1, handler)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// samplePayload mirrors SensorReading with pointer fields so absent keys
// are distinguishable from zero values.
type samplePayload struct {
	DeviceID  string   `json:"device_id"`
	Timestamp *int64   `json:"timestamp"`
	Current   *float64 `json:"current"`
	Voltage   *float64 `json:"voltage"`
	Power     *float64 `json:"power"`

	WiFiConnected bool   `json:"wifi_connected,omitempty"`
	WiFiSSID      string `json:"wifi_ssid,omitempty"`
	WiFiRSSI      int    `json:"wifi_rssi,omitempty"`
	WiFiIP        string `json:"wifi_ip,omitempty"`
}

// handleReading parses an electrical sample and writes it to the channel.
// Every sample field is required; a payload missing any of them is dropped
// with a log line and the stream continues.
func (s *Subscriber) handleReading(client mqtt.Client, msg mqtt.Message) {
	var payload samplePayload

	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling sensor reading from %s: %v", msg.Topic(), err)
		return
	}

	if payload.DeviceID == "" || payload.Timestamp == nil || payload.Current == nil ||
		payload.Voltage == nil || payload.Power == nil {
		log.Printf("Dropping sensor reading with missing fields from topic: %s", msg.Topic())
		return
	}
	if *payload.Timestamp <= 0 {
		log.Printf("Dropping sensor reading with invalid timestamp from %s", payload.DeviceID)
		return
	}

	reading := models.SensorReading{
		DeviceID:      payload.DeviceID,
		Timestamp:     *payload.Timestamp,
		Current:       *payload.Current,
		Voltage:       *payload.Voltage,
		Power:         *payload.Power,
		WiFiConnected: payload.WiFiConnected,
		WiFiSSID:      payload.WiFiSSID,
		WiFiRSSI:      payload.WiFiRSSI,
		WiFiIP:        payload.WiFiIP,
	}

	// Write to channel (non-blocking with timeout)
	select {
	case s.ReadingChan <- &reading:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Reading channel full, dropping message from %s", reading.DeviceID)
	}
}

// handleTraining parses a labeling or retraining command.
func (s *Subscriber) handleTraining(client mqtt.Client, msg mqtt.Message) {
	var request models.TrainingRequest

	if err := json.Unmarshal(msg.Payload(), &request); err != nil {
		log.Printf("Error unmarshaling training request from %s: %v", msg.Topic(), err)
		return
	}

	if request.Action == "" {
		log.Printf("Dropping training request without action from topic: %s", msg.Topic())
		return
	}

	log.Printf("Received training request: action=%s device=%s label=%s",
		request.Action, request.DeviceID, request.Label)

	select {
	case s.TrainingChan <- &request:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Training channel full, dropping %s request", request.Action)
	}
}

// handleLoad parses a load registry management command.
func (s *Subscriber) handleLoad(client mqtt.Client, msg mqtt.Message) {
	var request models.LoadRequest

	if err := json.Unmarshal(msg.Payload(), &request); err != nil {
		log.Printf("Error unmarshaling load request from %s: %v", msg.Topic(), err)
		return
	}

	if request.Action == "" {
		log.Printf("Dropping load request without action from topic: %s", msg.Topic())
		return
	}

	log.Printf("Received load request: action=%s name=%s id=%d",
		request.Action, request.Name, request.ID)

	select {
	case s.LoadChan <- &request:
		// Successfully sent
	case <-time.After(1 * time.Second):
		log.Printf("Warning: Load channel full, dropping %s request", request.Action)
	}
}
