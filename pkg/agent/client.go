package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	registerPath       = "/devices/register/"
	maxErrorBodyLength = 512
)

// RegistrationClient registers descriptors through the backend's HTTP API.
// Connection errors and 5xx responses are retried; 4xx responses are not.
type RegistrationClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
	clock   clockwork.Clock
	log     *logrus.Entry
}

func NewRegistrationClient(baseURL, token string, log *logrus.Entry, clock clockwork.Clock) *RegistrationClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	client := retryablehttp.NewClient()
	client.Logger = leveledLogger{log}
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	return &RegistrationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		clock:   clock,
		log:     log,
	}
}

func (c *RegistrationClient) Register(ctx context.Context, board string, device entities.DeviceDescriptor) (entities.RegistrationResponse, error) {
	var response entities.RegistrationResponse
	request := entities.RegistrationRequest{
		BoardID:      board,
		Address:      device.Address,
		DeviceClass:  device.DeviceClass,
		DeviceType:   device.DeviceType,
		Capabilities: device.Capabilities,
		DiscoveredAt: c.clock.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(request)
	if err != nil {
		return response, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, body)
	if err != nil {
		return response, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return response, errors.Wrap(err, "register request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return response, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return response, errors.Wrap(err, "decode registration response")
	}
	return response, nil
}

// RegisterAll registers every descriptor, one request each.
func (c *RegistrationClient) RegisterAll(ctx context.Context, board string, devices []entities.DeviceDescriptor) []entities.RegistrationOutcome {
	outcomes := make([]entities.RegistrationOutcome, 0, len(devices))
	for _, device := range devices {
		outcome := entities.RegistrationOutcome{Address: device.Address}
		response, err := c.Register(ctx, board, device)
		switch {
		case err != nil:
			outcome.Result = entities.OutcomeFailed
			outcome.Reason = err.Error()
			c.log.Errorf("failed to register %s: %v", device.Address, err)
		case response.Created:
			outcome.Result = entities.OutcomeCreated
			outcome.Response = &response
			c.log.Printf("registered new %s: %s", response.DeviceClass, response.Name)
		default:
			outcome.Result = entities.OutcomeUpdated
			outcome.Response = &response
			c.log.Printf("updated existing %s: %s", response.DeviceClass, response.Name)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
