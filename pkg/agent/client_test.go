package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/logging"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 2, 7, 45, 4, 0, time.UTC)

func newTestClient(url string) *RegistrationClient {
	client := NewRegistrationClient(url, "secret", logging.Discard(), clockwork.NewFakeClockAt(testNow))
	client.client.RetryWaitMin = time.Millisecond
	client.client.RetryWaitMax = 5 * time.Millisecond
	return client
}

func temperatureSensor() entities.DeviceDescriptor {
	return entities.DeviceDescriptor{
		Address:      "0x08",
		DeviceClass:  entities.DeviceClassSensor,
		DeviceType:   "temperature",
		Capabilities: []string{entities.CapabilityRead, entities.CapabilityAnalog},
	}
}

func TestGivenCreatedDeviceThenRegisterReturnsResponse(t *testing.T) {
	var received entities.RegistrationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/devices/register/", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(entities.RegistrationResponse{
			Created: true, DeviceClass: "sensor", ID: 7, Name: "Temperature (0x08)", Address: "0x08", Board: "PI-001",
		})
	}))
	defer server.Close()

	response, err := newTestClient(server.URL+"/api/").Register(context.Background(), "PI-001", temperatureSensor())
	require.NoError(t, err)
	assert.True(t, response.Created)
	assert.Equal(t, int64(7), response.ID)
	assert.Equal(t, "PI-001", received.BoardID)
	assert.Equal(t, "temperature", received.DeviceType)
	assert.Equal(t, "2026-01-02T07:45:04Z", received.DiscoveredAt)
}

func TestGivenServerErrorThenRegisterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(entities.RegistrationResponse{Created: false, DeviceClass: "sensor"})
	}))
	defer server.Close()

	response, err := newTestClient(server.URL+"/api").Register(context.Background(), "PI-001", temperatureSensor())
	require.NoError(t, err)
	assert.False(t, response.Created)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGivenClientErrorThenRegisterFailsWithoutRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "unknown device class"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL+"/api").Register(context.Background(), "PI-001", temperatureSensor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "unknown device class")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGivenMixedResponsesThenRegisterAllReportsEachOutcome(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request entities.RegistrationRequest
		_ = json.NewDecoder(r.Body).Decode(&request)
		switch request.Address {
		case "0x08":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(entities.RegistrationResponse{Created: true, Address: "0x08"})
		case "0x09":
			_ = json.NewEncoder(w).Encode(entities.RegistrationResponse{Created: false, Address: "0x09"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	led := entities.DeviceDescriptor{Address: "0x09", DeviceClass: entities.DeviceClassActuator, DeviceType: "led"}
	other := entities.DeviceDescriptor{Address: "0x0a", DeviceClass: entities.DeviceClassSensor, DeviceType: "light"}
	outcomes := newTestClient(server.URL+"/api").RegisterAll(context.Background(), "PI-001",
		[]entities.DeviceDescriptor{temperatureSensor(), led, other})

	require.Len(t, outcomes, 3)
	assert.Equal(t, entities.OutcomeCreated, outcomes[0].Result)
	assert.Equal(t, entities.OutcomeUpdated, outcomes[1].Result)
	assert.Equal(t, entities.OutcomeFailed, outcomes[2].Result)
	assert.Contains(t, outcomes[2].Reason, "404")
}
