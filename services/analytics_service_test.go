package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openpecha/pecha-tools-api/config"
	"github.com/stretchr/testify/assert"
)

func newCollectorServer(t *testing.T, received *[]umamiPayload) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload umamiPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		*received = append(*received, payload)
		w.WriteHeader(http.StatusOK)
	}))
}

func TestUmamiServiceTrack(t *testing.T) {
	var received []umamiPayload
	server := newCollectorServer(t, &received)
	defer server.Close()

	sink := &UmamiService{
		host:       server.URL,
		websiteID:  "site-1",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	err := sink.Track("tool-created", map[string]interface{}{"tool_id": "abc"})
	assert.NoError(t, err)

	assert.Len(t, received, 1)
	assert.Equal(t, "event", received[0].Type)
	assert.Equal(t, "site-1", received[0].Payload.Website)
	assert.Equal(t, "tool-created", received[0].Payload.Name)
	assert.Equal(t, "abc", received[0].Payload.Data["tool_id"])
}

func TestUmamiServiceIdentify(t *testing.T) {
	var received []umamiPayload
	server := newCollectorServer(t, &received)
	defer server.Close()

	sink := &UmamiService{
		host:       server.URL,
		websiteID:  "site-1",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	err := sink.Identify("auth0|123", "tenzin@pecha.org")
	assert.NoError(t, err)

	assert.Len(t, received, 1)
	assert.Equal(t, "identify", received[0].Type)
	assert.Equal(t, "auth0|123", received[0].Payload.Data["user_id"])
	assert.Equal(t, "tenzin@pecha.org", received[0].Payload.Data["email"])
}

func TestUmamiServiceCollectorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := &UmamiService{
		host:       server.URL,
		websiteID:  "site-1",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}

	err := sink.Track("tool-created", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestInitAnalyticsSink(t *testing.T) {
	t.Run("unconfigured falls back to noop", func(t *testing.T) {
		sink := InitAnalyticsSink(&config.Config{})
		defer SetAnalyticsSink(nil)

		_, isNoop := sink.(*NoopAnalyticsSink)
		assert.True(t, isNoop)
	})

	t.Run("configured builds a collector client", func(t *testing.T) {
		sink := InitAnalyticsSink(&config.Config{
			UmamiHost:      "https://analytics.pecha.tools",
			UmamiWebsiteID: "site-1",
		})
		defer SetAnalyticsSink(nil)

		umami, ok := sink.(*UmamiService)
		assert.True(t, ok)
		assert.Equal(t, "https://analytics.pecha.tools", umami.host)
		assert.Equal(t, "site-1", umami.websiteID)
	})
}

func TestGetAnalyticsSinkDefaultsToNoop(t *testing.T) {
	SetAnalyticsSink(nil)

	sink := GetAnalyticsSink()
	_, isNoop := sink.(*NoopAnalyticsSink)
	assert.True(t, isNoop)
	assert.NoError(t, sink.Track("anything", nil))
	assert.NoError(t, sink.Identify("auth0|123", "x@y.z"))
}

// failingSink always errors, for verifying that event tracking never
// propagates failures to callers
type failingSink struct{ calls int }

func (f *failingSink) Identify(userID, email string) error {
	f.calls++
	return assert.AnError
}

func (f *failingSink) Track(event string, props map[string]interface{}) error {
	f.calls++
	return assert.AnError
}

func TestTrackEventSwallowsErrors(t *testing.T) {
	sink := &failingSink{}
	SetAnalyticsSink(sink)
	defer SetAnalyticsSink(nil)

	assert.NotPanics(t, func() {
		TrackEvent("tool-created", map[string]interface{}{"tool_id": "abc"})
	})
	assert.Equal(t, 1, sink.calls)
}
