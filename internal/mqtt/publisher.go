package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"nilm-backend/internal/models"
)

// Publisher handles MQTT publishing from channels
type Publisher struct {
	client mqtt.Client

	// Input channels (read by publisher, written by the pipeline services)
	EventChan      chan *models.Event
	PredictionChan chan *models.PredictionUpdate

	// Topic patterns
	eventTopic      string // e.g., "nilm/events/{device_id}"
	predictionTopic string // e.g., "nilm/predictions/{device_id}"
}

// PublisherConfig holds configuration for MQTT publisher
type PublisherConfig struct {
	EventTopic      string // e.g., "nilm/events/{device_id}"
	PredictionTopic string // e.g., "nilm/predictions/{device_id}"
}

// NewPublisher creates a new MQTT publisher with channels
func NewPublisher(
	client mqtt.Client,
	config PublisherConfig,
	eventChan chan *models.Event,
	predictionChan chan *models.PredictionUpdate,
) *Publisher {
	return &Publisher{
		client:          client,
		EventChan:       eventChan,
		PredictionChan:  predictionChan,
		eventTopic:      config.EventTopic,
		predictionTopic: config.PredictionTopic,
	}
}

// Start begins publishing events and prediction updates from the channels.
// Runs until context is cancelled or both channels are closed.
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case event, ok := <-p.EventChan:
			if !ok {
				log.Println("MQTT Publisher: Event channel closed, shutting down...")
				return
			}
			if err := p.publishEvent(event); err != nil {
				log.Printf("Error publishing event: %v", err)
			}

		case update, ok := <-p.PredictionChan:
			if !ok {
				log.Println("MQTT Publisher: Prediction channel closed, shutting down...")
				return
			}
			if err := p.publishPrediction(update); err != nil {
				log.Printf("Error publishing prediction update: %v", err)
			}
		}
	}
}

// publishEvent publishes a detected ON/OFF transition
func (p *Publisher) publishEvent(event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := formatTopic(p.eventTopic, event.DeviceID)

	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish event: %w", token.Error())
	}

	log.Printf("Published %s event for device %s to topic: %s", event.Type, event.DeviceID, topic)
	return nil
}

// publishPrediction publishes a periodic prediction update
func (p *Publisher) publishPrediction(update *models.PredictionUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction update: %w", err)
	}

	topic := formatTopic(p.predictionTopic, update.DeviceID)

	token := p.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish prediction update: %w", token.Error())
	}

	return nil
}

// formatTopic replaces {device_id} placeholder with actual device ID
func formatTopic(topicPattern, deviceID string) string {
	return strings.ReplaceAll(topicPattern, "{device_id}", deviceID)
}
