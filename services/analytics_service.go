package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/openpecha/pecha-tools-api/config"
)

// AnalyticsSink is the capability the application uses to report usage
// events. Callers receive it explicitly; there is no ambient global.
type AnalyticsSink interface {
	// Identify associates subsequent events with a user
	Identify(userID, email string) error

	// Track reports a named event with optional structured properties
	Track(event string, props map[string]interface{}) error
}

// UmamiService implements AnalyticsSink against a umami collector's
// /api/send endpoint.
type UmamiService struct {
	host       string
	websiteID  string
	httpClient *http.Client
}

var analyticsSinkInstance AnalyticsSink

// InitAnalyticsSink initializes the analytics sink from configuration.
// When no collector is configured the sink is a no-op.
func InitAnalyticsSink(cfg *config.Config) AnalyticsSink {
	if cfg.UmamiHost == "" || cfg.UmamiWebsiteID == "" {
		log.Println("Analytics collector not configured, events will be dropped")
		analyticsSinkInstance = &NoopAnalyticsSink{}
		return analyticsSinkInstance
	}

	analyticsSinkInstance = &UmamiService{
		host:      cfg.UmamiHost,
		websiteID: cfg.UmamiWebsiteID,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
	return analyticsSinkInstance
}

// GetAnalyticsSink returns the initialized analytics sink instance
func GetAnalyticsSink() AnalyticsSink {
	if analyticsSinkInstance == nil {
		return &NoopAnalyticsSink{}
	}
	return analyticsSinkInstance
}

// SetAnalyticsSink sets the analytics sink instance (primarily for testing)
func SetAnalyticsSink(sink AnalyticsSink) {
	analyticsSinkInstance = sink
}

// umamiPayload is the wire shape the collector expects
type umamiPayload struct {
	Type    string `json:"type"`
	Payload struct {
		Website string                 `json:"website"`
		Name    string                 `json:"name,omitempty"`
		Data    map[string]interface{} `json:"data,omitempty"`
	} `json:"payload"`
}

func (s *UmamiService) send(eventType, name string, data map[string]interface{}) error {
	payload := umamiPayload{Type: eventType}
	payload.Payload.Website = s.websiteID
	payload.Payload.Name = name
	payload.Payload.Data = data

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode analytics payload: %w", err)
	}

	req, err := http.NewRequest("POST", s.host+"/api/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send analytics event: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("analytics collector returned status %d", resp.StatusCode)
	}

	return nil
}

// Identify associates subsequent events with a user
func (s *UmamiService) Identify(userID, email string) error {
	return s.send("identify", "", map[string]interface{}{
		"user_id": userID,
		"email":   email,
	})
}

// Track reports a named event with optional structured properties
func (s *UmamiService) Track(event string, props map[string]interface{}) error {
	return s.send("event", event, props)
}

// NoopAnalyticsSink drops all events. It satisfies AnalyticsSink for
// tests and for deployments without a collector.
type NoopAnalyticsSink struct{}

// Identify does nothing
func (n *NoopAnalyticsSink) Identify(userID, email string) error { return nil }

// Track does nothing
func (n *NoopAnalyticsSink) Track(event string, props map[string]interface{}) error { return nil }

// TrackEvent reports an event through the configured sink, logging and
// swallowing failures. Analytics must never fail a request.
func TrackEvent(event string, props map[string]interface{}) {
	if err := GetAnalyticsSink().Track(event, props); err != nil {
		log.Printf("Failed to track %s event: %v", event, err)
	}
}
